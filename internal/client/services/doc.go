// Package services holds the client-side state of the marketplace: the
// session manager, the product store, the market price board and the
// storage service. Services talk to the backend only through the gateway
// interfaces and keep their observable state behind a mutex.
package services
