// Package httpapi carries the authentication backend contract over JSON/HTTP.
//
// Routes:
//
//	POST /auth/login    body {"email","password"}  -> 200 {"token","user"}
//	POST /auth/refresh  Authorization: Bearer      -> 200 {"token"}
//	GET  /auth/status   Authorization: Bearer      -> 200 {"isAuthenticated","user"}
//	POST /auth/logout   Authorization: Bearer      -> 204
//
// Any other status carries {"error": "<reason>"} and surfaces on the client as
// a *goSession.BackendError.
package httpapi
