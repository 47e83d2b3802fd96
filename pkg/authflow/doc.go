// Package authflow implements the credentials auth flows: login, registration,
// email verification, password reset and settings updates.
//
// Each operation returns a Result describing the outcome. Expected rejections
// such as a wrong password or an expired link are reported in the Result with
// a nil error; a non-nil error means a store, hasher or mail failure and the
// caller should answer with a generic message.
//
// Login runs as an ordered sequence of LoginFlowStep values so deployments can
// insert or replace steps:
//
//	svc := authflow.NewService(deps, authflow.WithLoginFlow(func(s *authflow.Service) *authflow.FlowExecutor {
//		registry := authflow.NewStepRegistry().
//			AddStep(&authflow.InputValidationStep{}).
//			AddStep(&authflow.UserLookupStep{}).
//			AddStep(&auditStep{}).
//			AddStep(&authflow.PasswordCheckStep{}).
//			AddStep(&authflow.SessionIssuanceStep{})
//		return authflow.NewFlowExecutor(registry, s)
//	}))
package authflow
