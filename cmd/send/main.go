// Command send delivers one notification through the relay, with optional
// retries, and prints the SendResult as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"push-relay/config"
	"push-relay/credentials"
	"push-relay/logging"
	"push-relay/relay"
	"push-relay/tokens"
)

type options struct {
	configPath string
	creds      string
	target     string
	title      string
	body       string
	data       string
	attempts   int
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "Path to YAML config file (optional)")
	flag.StringVar(&o.creds, "creds", "", "Path to service account credentials file")
	flag.StringVar(&o.target, "token", "", "Target device registration token")
	flag.StringVar(&o.title, "title", "", "Notification title")
	flag.StringVar(&o.body, "body", "", "Notification body")
	flag.StringVar(&o.data, "data", "", `Custom data as a JSON object, e.g. '{"orderId":42}'`)
	flag.IntVar(&o.attempts, "attempts", relay.DefaultRetryPolicy.Attempts, "Maximum send attempts")
	flag.Parse()

	res, err := execute(context.Background(), o, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if !res.Success {
		os.Exit(1)
	}
}

func execute(ctx context.Context, o options, out io.Writer) (relay.SendResult, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return relay.SendResult{}, err
	}
	if o.creds != "" {
		cfg.CredentialsFile = o.creds
	}

	closeLog, err := logging.Init(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return relay.SendResult{}, err
	}
	defer closeLog()

	cred, err := credentials.Load(cfg.CredentialsFile, cfg.CredentialsJSON)
	if err != nil {
		return relay.SendResult{}, err
	}

	var data map[string]interface{}
	if o.data != "" {
		if err := json.Unmarshal([]byte(o.data), &data); err != nil {
			return relay.SendResult{}, fmt.Errorf("invalid -data: %w", err)
		}
	}

	manager := tokens.NewManager(
		tokens.NewJWTExchanger(cred, &http.Client{}),
		tokens.WithMargin(cfg.TokenMargin),
		tokens.WithTimeout(cfg.TokenTimeout),
	)
	r := relay.New(manager, cred.ProjectID,
		relay.WithEndpoint(cfg.FCMEndpoint),
		relay.WithTimeout(cfg.SendTimeout),
	)

	policy := relay.DefaultRetryPolicy
	policy.Attempts = o.attempts
	res := relay.SendWithRetry(ctx, r, relay.SendRequest{
		TargetToken: o.target,
		Title:       o.title,
		Body:        o.body,
		Data:        data,
	}, policy)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return res, err
	}
	return res, nil
}
