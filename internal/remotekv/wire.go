// Package remotekv is the multiplexed streaming RPC client to the remote
// key-value store (spec §4.1, C1) and the cursor abstractions built on top
// of it (spec §4.2, C2). Grounded on silkworm/silkrpc's
// grpc/bidi_streaming_rpc.hpp (one bidirectional stream per remote
// transaction, strictly serialized operations) and on erigon-lib's KV
// table-name constants (other_examples/..._erigon-lib-kv-tables.go.go).
package remotekv

// Op enumerates the cursor operations carried over the wire (spec §4.1).
// The wire format itself is treated as opaque per spec §1; these are the
// logical operation tags a real protobuf-generated Cursor message would
// carry.
type Op int32

const (
	OpOpen Op = iota
	OpOpenDupSort
	OpClose
	OpSeek
	OpSeekExact
	OpNext
	OpNextDup
	OpSeekBoth
	OpFirst
)

// CursorRequest is one outbound message on the bidirectional stream.
type CursorRequest struct {
	Op         Op
	Cursor     uint32
	BucketName string
	K          []byte
	V          []byte
}

// Pair is one inbound message: either a cursor-open acknowledgement
// (CursorID set, K/V empty) or a seek/next reply.
type Pair struct {
	CursorID uint32
	K        []byte
	V        []byte
}

// Stream is the transport the Client multiplexes operations over: one
// instance per remote transaction, matching a gRPC bidirectional streaming
// call such as `KV.Tx(stream CursorRequest) returns (stream Pair)`.
type Stream interface {
	Send(*CursorRequest) error
	Recv() (*Pair, error)
	CloseSend() error
}

// Tables used by this daemon, named exactly as the remote KV store exposes
// them (spec §6 "outbound RPC").
const (
	TablePlainState            = "PlainState"
	TableCode                  = "Code"
	TableCanonicalHashes       = "CanonicalHashes"
	TableConfig                = "Config"
	TablePlainStorageChangeSet = "PlainStorageChangeSet"
	TableAccountChangeSet      = "AccountChangeSet"
	TableStorageHistory        = "StorageHistory"
	TableAccountHistory        = "AccountHistory"
	TableBlockBody             = "BlockBody"
	TableBlockReceipts         = "BlockReceipts"
	TableHeaders               = "Headers"
	TableSyncStageProgress     = "SyncStage"
)
