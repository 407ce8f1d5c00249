/*
Package dbtest spins up Neo4j containers for tests that export graphs. It wraps
the testcontainers-go neo4j module with the defaults our tests share.

Developing locally with Docker, you may want to manually inspect the exported
graph after a test failure. To do this, set the Inspect flag:

	go test ./neo4jexport -dbtest.inspect

This package is intended to be used in tests only.
*/
package dbtest
