// Package vecline embeds the vecline retrieval pipeline in a Go program.
//
// A Client turns free-text queries into vectors, runs a nearest-neighbour
// query against a pre-built index and returns matches ordered by relevance
// or newest first. The index is never written to.
//
//	client, _ := vecline.New(ctx,
//	    vecline.WithValkey("localhost:6379", ""),
//	    vecline.WithIndexName("capstone"),
//	    vecline.WithEmbedder(myEmbedder),
//	)
//	defer client.Close()
//
//	res, _ := client.Retrieve(ctx, "final project ideas", &vecline.RetrieveOptions{
//	    TopK: 5,
//	    Mode: vecline.ModeChronological,
//	})
//	for _, m := range res.Matches {
//	    fmt.Println(m.ID, m.Score, m.Metadata["title"])
//	}
//
// A blank query is served with the zero vector and never reaches the embedder,
// so a Client built without WithEmbedder still answers blank queries.
package vecline
