// Package surrealql builds parameterized SurrealQL from template fragments.
//
// Interpolated values are never written into the query text. Each one is
// replaced with a placeholder named after its position ($a, $b, ... $z, $aa)
// and sent alongside the query: as a variables map over the RPC channel, or
// as URL query parameters over HTTP.
//
//	q := surrealql.Build("SELECT * FROM person WHERE age > ", 18, " AND name = ", surrealql.Value("tobie"))
//	sql, vars := q.Query()
//	// sql:  SELECT * FROM person WHERE age > $a AND name = $b
//	// vars: map[a:18 b:tobie]
package surrealql
