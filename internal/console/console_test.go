package console

import (
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/RangGames/CreeperPrefixSystem/internal/config"
)

func testConsole(t *testing.T, endpoint string, handler fasthttp.RequestHandler) *Console {
	t.Helper()
	cfg, err := config.Parse(map[string]string{
		"DB_DRIVER":        "memory",
		"NODE_ID":          "node-a",
		"CONSOLE_ENDPOINT": endpoint,
		"CONSOLE_TOKEN":    "secret",
	})
	if err != nil {
		t.Fatal(err)
	}
	c := New(cfg, zerolog.Nop())
	if handler != nil {
		ln := fasthttputil.NewInmemoryListener()
		go fasthttp.Serve(ln, handler)
		t.Cleanup(func() { ln.Close() })
		c.client.Dial = func(string) (net.Conn, error) { return ln.Dial() }
	}
	return c
}

func TestDispatchPostsDirective(t *testing.T) {
	var got directive
	var auth string
	c := testConsole(t, "http://console.local/run", func(ctx *fasthttp.RequestCtx) {
		auth = string(ctx.Request.Header.Peek("Authorization"))
		if err := json.Unmarshal(ctx.PostBody(), &got); err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusAccepted)
	})

	if err := c.Dispatch(context.Background(), " give Steve cake "); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got.Command != "give Steve cake" || got.Node != "node-a" {
		t.Fatalf("directive = %+v", got)
	}
	if auth != "Bearer secret" {
		t.Fatalf("authorization = %q", auth)
	}
}

func TestDispatchReportsFailures(t *testing.T) {
	c := testConsole(t, "http://console.local/run", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusForbidden)
	})
	if err := c.Dispatch(context.Background(), "op Steve"); err == nil {
		t.Fatalf("expected an error for a rejected directive")
	}
}

func TestDispatchWithoutEndpointOnlyLogs(t *testing.T) {
	c := testConsole(t, "", nil)
	tests := []string{"say hi", "   "}
	for _, command := range tests {
		if err := c.Dispatch(context.Background(), command); err != nil {
			t.Fatalf("Dispatch(%q): %v", command, err)
		}
	}
}
