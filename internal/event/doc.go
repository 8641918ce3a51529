// Package event provides a synchronous pub-sub bus and the typed events
// councild components publish on it. The bus decouples the HTTP server from
// observers (structured logging, conversation persistence) without direct
// dependencies between them.
//
// The bus is server-side observability only. The pipeline's progress events
// travel on a single-consumer channel owned by the transport; see the
// council package.
package event
