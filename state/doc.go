// Package state provides the shared table and completion signal that a
// producer and a consumer use to hand work to each other.
//
// The Store interface is a concurrency-safe key-value table: Put, atomic Take,
// idempotent Delete, key listing and change notifications. Two backends exist:
// an in-memory map guarded by its own lock, and NATS JetStream KV.
//
// Completion is the one-shot publication of "production is done" together
// with the final item count. The count is written before the flag, so any
// reader that sees the flag also sees the real count.
//
// # Usage
//
//	// Single process: in-memory
//	store := state.NewMemoryStore()
//
//	// Shared across processes: NATS JetStream KV
//	conn, _ := nats.Connect(nats.DefaultURL)
//	store, _ := state.NewNATSStore(state.NATSStoreConfig{
//	    Conn:   conn,
//	    Bucket: "assignments",
//	})
//
//	store.Put("txn.1", payload)
//	val, err := store.Take("txn.1") // exactly one caller gets the value
//
//	// Wake up on new entries instead of spinning
//	ch, _ := store.Watch(ctx, "txn.*")
//	for kv := range ch {
//	    fmt.Printf("%s changed (%s)\n", kv.Key, kv.Operation)
//	}
//
//	done := state.NewCompletion()
//	done.Publish(6)
//	if done.IsDone() {
//	    total := done.FinalCount() // 6, never the sentinel
//	}
package state
