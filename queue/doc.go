// Package queue runs knowledge-base tool calls through Redis work queues.
//
// Callers push work items onto per-tool lists, workers pop and execute them
// against a tool registry, and results come back on a per-job pub/sub
// channel. Many workers can share one set of queues, each holding its own
// copy of the index.
//
// # Redis Key Schema
//
// Every key is prefixed with the namespace (default "attackkb"):
//   - <ns>:tool:<name>:queue - List of work items (LPUSH/BRPOP)
//   - <ns>:tool:<name>:meta - Hash of tool metadata
//   - <ns>:tool:<name>:health - Heartbeat string with a TTL
//   - <ns>:tool:<name>:workers - Count of running workers
//   - <ns>:tools - Set of registered tool names
//   - <ns>:results:<job_id> - Pub/Sub channel for a job's results
//
// # Usage
//
// Running a worker:
//
//	client, err := queue.NewRedisClient(queue.RedisOptions{URL: "redis://localhost:6379"})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	worker, err := queue.NewWorker(client, tools, queue.WithConcurrency(8))
//	if err != nil {
//		return err
//	}
//	return worker.Run(ctx)
//
// Calling a tool through the queue:
//
//	res, err := client.Call(ctx, "query_technique", map[string]any{"technique_id": "T1059"})
//	if err != nil {
//		return err
//	}
//	if res.Error != nil {
//		// structured tool error, e.g. NOT_FOUND
//	}
//
// Tool failures travel as structured errors inside the Result; the error
// return of Call and Batch only reports queue or Redis failures.
package queue
