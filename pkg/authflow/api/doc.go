// Package api exposes the auth flows as a JSON HTTP API on chi.
//
// Every response body is an authflow.Result. Rejections answer with the
// status of their reason (400, 401, 403, 404, 409, 410); store and mail
// failures answer 503 with a generic message and are logged here.
package api
