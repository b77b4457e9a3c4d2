// Package main hosts the maltrieve entrypoint.
//
// A run loads the seen-URL and seen-hash sets, optionally reports the address
// the configured proxy presents, then pulls candidate URLs from the command
// line and each enabled feed. New URLs are queued for a fixed pool of workers
// that download, hash and store every previously unseen sample, optionally
// recording it in Postgres, announcing it on Kafka or Pub/Sub and submitting
// it to VxCage and Cuckoo. Once the queue drains the sets are saved.
//
// Interrupting the process with SIGINT or SIGTERM stops the harvest without
// saving state, so the next run retries everything the interrupted one saw.
//
// Quick checklist:
//   - Configure via flags, MALTRIEVE_* env vars (e.g. MALTRIEVE_STORAGE_BACKEND=gcs)
//     or a YAML file passed with --config.
//   - Run locally: go run ./cmd/maltrieve -d /srv/malware -x http://extra.example/payload.exe
//   - Set server.addr to expose /healthz, /readyz, /metrics and /v1/stats while harvesting.
package main
