package handler

// RefreshTokenCookie exposes the refresh token cookie name to external tests.
const RefreshTokenCookie = refreshTokenCookie
