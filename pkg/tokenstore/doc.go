/*
Package tokenstore persists token cache snapshots so that compiled templates
can be shared between coordinator instances and across process restarts.

Snapshots are exchanged as JSON. FileStore keeps one file per snapshot,
written atomically; SQLStore keeps them in a SQLite database.
*/
package tokenstore
