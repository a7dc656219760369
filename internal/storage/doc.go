// Package storage provides the replica-side row store. A row holds the
// indexed tag and fragment columns of one partition key and exposes them
// through a typed slot accessor, together with a digest used to compare
// replicas cheaply.
package storage
