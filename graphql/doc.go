// Package graphql provides a low level GraphQL-over-HTTP client.
//
//	// create a client (safe to share across requests); 2 is the default
//	// retry budget, in [graphql.MinRetries, graphql.MaxRetries]
//	client, err := graphql.NewClient("https://example.myshopify.com/admin/api/graphql.json", 2)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// run a request and capture the response
//	resp, err := client.Request(ctx, `query { shop { name } }`, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// run an @defer request as a stream
//	stream, err := client.RequestStream(ctx, `query { shop { name ... @defer { description } } }`, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stream.Close()
//	for stream.Next(ctx) {
//	    snapshot := stream.Current()
//	    // snapshot.Data grows with every call to Next
//	}
//
// # Specify transport
//
// To specify your own *http.Client, use the WithHTTPClient option:
//
//	httpClient := &http.Client{Timeout: 30 * time.Second}
//	client, err := graphql.NewClient(url, 2, graphql.WithHTTPClient(httpClient))
package graphql
