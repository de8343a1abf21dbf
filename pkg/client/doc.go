// Package client provides the backend handles managed by the connection
// pool. A handle is created by a Factory and exposes a query capability and
// a cheap validation probe; the pool treats it as an opaque resource and
// owns its lifecycle.
//
// Two families of handle are available, selected by configuration:
//
//   - rest: a Supabase PostgREST client speaking HTTP with the project
//     service key. Handles are stateless; no cookies are kept and no token
//     refresh is performed.
//   - postgres, mysql, sqlite: a database/sql handle pinned to a single
//     physical connection, so every pooled handle maps to exactly one
//     backend connection.
package client
