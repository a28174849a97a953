package omvcc

/*
omvcc is an in-memory transactional key/value store with optimistic multi-version concurrency control. Keys and values
are 64-bit integers. Transactions read a consistent snapshot, buffer their writes, and are validated when they commit;
a transaction which cannot be serialized is aborted rather than blocked.

The `omvcc` module is organized into the following packages:

* `kv`: the `omvcc` executable. It runs schedule files, offers an interactive shell, and runs a transfer benchmark.
* `kv/engine`: the Engine type clients use: begin, read, write, modquery, commit and rollback, plus background
  garbage collection and prometheus metrics.
* `kv/transaction`: concurrency control, see `kv/transaction/doc.go` for an overview.
* `kv/config`: engine configuration, read from TOML files.
* `kv/util`: key fingerprints and a small background worker.
* `log`: sets up the global logger.
*/
