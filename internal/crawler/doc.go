// Package crawler holds the types and collaborator interfaces shared by the
// admission gate, queue, workers, stores and forwarders.
package crawler
