package common

// GatewayTokenHeaderName is the header the API gateway uses to prove that a
// request was proxied through it.
const GatewayTokenHeaderName = "gatewayToken"

// AuthorizationHeaderName carries the end-user session token as "Bearer <token>".
const AuthorizationHeaderName = "Authorization"

// BasePath is the versioned prefix every auth route is mounted under.
const BasePath = "/api/v1/auth"
