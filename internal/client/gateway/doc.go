// Package gateway describes the remote service the client talks to: session
// operations, a logical table interface and blob storage. Concrete adapters
// live in the sub-packages rest, pgtable and s3blob.
//
// # Error Handling
//
// Adapters return *RemoteError when the service answered with a structured
// error (matches common.ErrRemoteRejected) and wrap common.ErrTransport when
// the call could not complete. Missing rows additionally match common.ErrNotFound.
package gateway
