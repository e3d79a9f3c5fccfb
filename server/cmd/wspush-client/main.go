package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gaspardpetit/wspush/modules/common/config"
	"github.com/gaspardpetit/wspush/modules/common/logx"
	"github.com/gaspardpetit/wspush/sdk/base/wsclient"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	url := flag.String("url", config.GetEnv("SERVER_URL", "ws://localhost:8080/ws"), "push server websocket URL")
	key := flag.String("client-key", config.GetEnv("CLIENT_KEY", ""), "bearer token presented to the server")
	session := flag.String("session", config.GetEnv("SESSION_ID", ""), "session id sent with the upgrade")
	keep := flag.Bool("reconnect", false, "reconnect when the connection drops")
	wait := flag.Duration("wait", 2*time.Second, "how long to wait for a reply body; answers without one print what arrived")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("wspush-client version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmds := flag.Args()
	opts := wsclient.Options{ClientKey: *key, SessionID: *session}
	err := wsclient.Run(ctx, *url, opts, *keep, func(ctx context.Context, c *wsclient.Client) error {
		if len(cmds) > 0 {
			for _, cmd := range cmds {
				if err := do(ctx, c, cmd, *wait, os.Stdout); err != nil {
					return err
				}
			}
			return c.Close()
		}
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if err := do(ctx, c, line, *wait, os.Stdout); err != nil {
				return err
			}
		}
		return c.Close()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logx.Log.Fatal().Err(err).Msg("client stopped")
	}
}

// do sends cmd and prints the reply like an HTTP response. Redirects and
// cookies carry no body, so the reply ends after wait.
func do(ctx context.Context, c *wsclient.Client, cmd string, wait time.Duration, out io.Writer) error {
	rctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	rep, err := c.Do(rctx, cmd)
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return err
		}
		if rep == nil {
			logx.Log.Warn().Str("command", cmd).Dur("wait", wait).Msg("no reply")
			return nil
		}
	}
	printReply(out, rep)
	return nil
}

func printReply(out io.Writer, rep *wsclient.Reply) {
	if rep.Status != 0 {
		fmt.Fprintf(out, "status %d\n", rep.Status)
	}
	keys := make([]string, 0, len(rep.Header))
	for k := range rep.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range rep.Header[k] {
			fmt.Fprintf(out, "%s: %s\n", k, v)
		}
	}
	for _, ck := range rep.Cookies {
		fmt.Fprintf(out, "Set-Cookie: %s\n", ck)
	}
	if rep.Body == nil {
		return
	}
	if rep.Binary {
		fmt.Fprintf(out, "\n[%d bytes]\n", len(rep.Body))
		return
	}
	fmt.Fprintf(out, "\n%s\n", rep.Body)
}
