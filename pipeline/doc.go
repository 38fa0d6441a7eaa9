// Package pipeline hands assignments from one producer goroutine to one
// consumer goroutine through a shared key-value table instead of a queue.
//
// # Protocol
//
//	Producer                    SharedState                    Consumer
//	────────                    ───────────                    ────────
//	Put(1, a1) ───────────────▶ txn.1
//	  wait                                     ◀─────────────── SnapshotKeys
//	Put(2, a2) ───────────────▶ txn.2          ◀─────────────── Remove(1), Remove(2)
//	  ...                                                         (any order)
//	Publish(n)  ──────────────▶ finalCount=n, then done=true
//	                                           ◀─────────────── done && consumed >= n
//
// Keys are transaction IDs starting at 1. The table has no iteration order,
// so the consumer may see key 5 before key 1. Only the set of consumed items
// is guaranteed to match the set produced.
//
// The producer publishes completion on every exit path, including
// cancellation and store failure, with the number of items it actually
// inserted. The consumer therefore always terminates once the producer has
// stopped, and stops early on its own cancellation with a partial report.
//
// # Usage
//
//	shared, _ := pipeline.NewSharedState(state.NewMemoryStore(), state.NewCompletion())
//	producer, _ := pipeline.NewProducer(shared, assignment.Authored(time.Now()), pipeline.DefaultProducerConfig())
//	consumer, _ := pipeline.NewConsumer(shared, pipeline.DefaultConsumerConfig())
//
//	summary, err := pipeline.Run(ctx, producer, consumer, pipeline.RunConfig{})
//	fmt.Println(summary) // "all assignments produced and consumed"
package pipeline
