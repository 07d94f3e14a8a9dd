// Package b24client provides the primary entry point for constructing a
// Bitrix24 portal client that implements the bitrix24.Client interface.
//
// It layers token lifecycle management, retrying HTTP transport, and the
// optional throttled dispatcher on top of the interfaces and types defined in
// the bitrix24 package. Most applications should import b24client to build a
// client, then use the returned bitrix24.Client to issue raw calls or to
// access the CRM entity clients, for example Leads(), Deals(), Contacts().
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/ainq-io/bitrix24-client/pkg/b24client"
//	  "github.com/ainq-io/bitrix24-client/pkg/bitrix24"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  // With a token pair you already have:
//	  cli, err := b24client.NewWithToken(ctx, "example.bitrix24.com",
//	    "eyJhbGciOi...", "refresh-token")
//	  if err != nil { log.Fatal(err) }
//
//	  // Or with OAuth application credentials. A rejected refresh token then
//	  // falls back to polling Config.AuthorizationCodes for a fresh consent
//	  // code, so long-running services survive token revocation.
//	  cli, err = b24client.New(ctx, &bitrix24.Config{
//	    Portal:       "example.bitrix24.com",
//	    ClientID:     "app.1234567.abcdef",
//	    ClientSecret: "secret",
//	    AuthorizationCodes: bitrix24.CodeProviderFunc(func(ctx context.Context) (string, error) {
//	      return readCodeFromOperator(ctx)
//	    }),
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  defer cli.Close()
//
//	  // Use the CRM entity clients via the bitrix24.Client interface
//	  leads, err := cli.Leads().List(ctx, &bitrix24.ListOptions{
//	    Filter: map[string]any{"STATUS_ID": "NEW"},
//	  })
//	  if err != nil { log.Fatal(err) }
//	  _ = leads
//	}
//
// # Rate limiting and dispatch
//
// The portal throttles clients to a couple of requests per second. Set
// Config.ThrottleInterval to space calls out at the source and
// Config.MaxPriority to let urgent calls jump the queue; leave both unset to
// run calls concurrently and rely on the quadratic retry backoff alone.
//
// # TLS and development mode
//
// For local development against self-signed portals you can set
// Config.SkipTLSVerify=true. This is gated by the environment variable
// B24_DEV_MODE to avoid accidental insecure usage in production environments.
//
// # Helpers
//
// The package also provides convenience constructors NewWithToken and
// NewWithClientCredentials that wrap New with the appropriate configuration.
package b24client
