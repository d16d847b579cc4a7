// Package rqalsh answers the c-approximate k-furthest-neighbor (c-k-AFN)
// problem over a disk-resident collection of real-valued vectors.
//
// Given a query vector and a parameter k, it returns k data objects whose
// Euclidean distances from the query approximate the true top-k furthest
// distances within a multiplicative factor c, while reading far fewer
// bytes than a full scan.
//
// Two collaborating indexes are provided:
//
//   - Index (RQALSH): m random projections, each stored in a paginated
//     query-aware B+-tree, searched by a bidirectional sweep that starts
//     at both ends of each projection's key order and moves inward toward
//     the query's projected value.
//   - StarIndex (RQALSH*): a Drusilla subset selection over the dataset
//     followed by an Index built over just that subset.
//
// Both share a paged block file, an in-memory top-k buffer, and a
// dataset page layout. The index is bulk-loaded once and then opened
// read-only; there is no update or delete path after build.
//
// Basic usage:
//
//	if err := dataset.Write(vectors, d, pageSize, dataDir); err != nil {
//		log.Fatal(err)
//	}
//
//	idx, err := rqalsh.Build(rqalsh.BuildConfig{N: n, D: d, B: pageSize, ...}, vectors, indexDir, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer idx.Close()
//
//	list := topk.NewMaxKList(k)
//	io, err := idx.KFN(k, query, dataDir, list)
package rqalsh
