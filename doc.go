// Package auth implements the credential core of the document-management
// backend: password hashing, signed access tokens, refresh-token rotation,
// and role-gated request admission.
//
// Token pairs:
//   - Access tokens are short-lived HS256 JWTs carrying identity and role
//     claims. The signing algorithm is pinned; tokens declaring any other
//     algorithm are rejected before signature verification.
//   - Refresh tokens are opaque 256-bit random strings tracked server side by
//     the Ledger. A refresh token is consumed exactly once: rotation marks it
//     rotated and issues a replacement. Presenting an already-consumed token
//     is treated as theft and revokes every token for that identity.
//
// Stores:
//   - The Ledger persists through the RefreshTokenStore interface. The module
//     ships a Bun/SQL store, an in-memory store, and a Redis store. Rotation
//     relies on the store's atomic lookup-and-transition so two concurrent
//     rotations of the same token cannot both succeed.
//
// Request admission:
//   - middleware/gateware evaluates per-route required-role sets declared at
//     registration time. Routes without required roles pass through without a
//     token; otherwise a valid bearer token is required (401) and its role
//     claims must intersect the route's set (403, with an RFC 7807 problem
//     document).
package auth
