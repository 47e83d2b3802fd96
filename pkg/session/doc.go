// Package session issues signed session tokens and loads the current user
// for each request.
//
// Manager.SignIn is the sign-in completion hook: it runs after the password
// check, refuses unverified users, and consumes the 2FA confirmation when the
// user has 2FA enabled. Failures are *AuthError values typed as
// credentials_signin, callback_route_error or access_denied.
//
// Manager.Middleware verifies the token with jwtauth and reloads the user
// from the store, so a request always sees the stored role rather than the
// one signed into the token.
package session
