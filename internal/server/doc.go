// Package server wires notebox together and serves its HTTP API.
//
// New opens the store, builds the token service, the revocation backend,
// the authentication gate, and the note, attachment, and export services
// from a config.Config. Run serves until the context is cancelled, then
// shuts down within server.shutdown_timeout.
//
// # Routes
//
//	POST   /auth/register          public
//	POST   /auth/login             public
//	POST   /auth/logout            bearer token
//	POST   /notes                  bearer, multipart
//	GET    /notes                  bearer, 204 when empty
//	GET    /notes/{id}             bearer
//	PUT    /notes/{id}             bearer, JSON or multipart, owner only
//	DELETE /notes/{id}             bearer, owner only
//	GET    /notes/search/{term}    bearer
//	POST   /notes/{id}/images      bearer, multipart field "image", owner only
//	DELETE /image/{id}             bearer, owner only
//	GET    /image/{name}           public
//	GET    /pdf/{id}/export/pdf    public
//	GET    /health                 public
//
// Errors are returned as {"error": "..."} with the status derived from the
// apperr kind. Every request carries a deadline of server.request_timeout
// and an X-Request-ID.
//
// # Tailscale
//
// With tailscale.enabled the API is served on a tsnet node instead of
// server.http_addr, optionally over HTTPS with tailnet certificates or
// through Funnel.
package server
