package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ambiyansyah-risyal/kurir"
)

var exampleUsage = strings.TrimSpace(`
  kurir get https://api.example.com/users -p page=2 -H "Authorization: Bearer $TOKEN"
  kurir post /users --base-url https://api.example.com -d '{"name":"alice"}'
  kurir get /health --config ~/.kurir.yaml --repeat 100 --rate 5 --metrics-addr :9090
`)

type options struct {
	headers     []string
	params      []string
	data        string
	baseURL     string
	timeout     time.Duration
	configPath  string
	rate        float64
	burst       int
	repeat      int
	include     bool
	verbose     bool
	metricsAddr string
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if err := newRootCommand(log).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(log zerolog.Logger) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:     "kurir",
		Short:   "Send HTTP requests through the kurir interceptor pipeline",
		Example: exampleUsage,
		Version: kurir.GetVersion(),
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SilenceUsage = true

	flags := root.PersistentFlags()
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, `request header as "Name: value" (repeatable)`)
	flags.StringArrayVarP(&opts.params, "param", "p", nil, "query parameter as key=value (repeatable)")
	flags.StringVarP(&opts.data, "data", "d", "", "request body; JSON objects and arrays are sent as JSON, @file reads a file")
	flags.StringVar(&opts.baseURL, "base-url", "", "base URL for relative request URLs")
	flags.DurationVar(&opts.timeout, "timeout", 0, "request timeout (0 for none)")
	flags.StringVar(&opts.configPath, "config", "", "YAML or TOML defaults file")
	flags.Float64Var(&opts.rate, "rate", 0, "maximum requests per second (0 for unlimited)")
	flags.IntVar(&opts.burst, "burst", 1, "rate limiter burst")
	flags.IntVar(&opts.repeat, "repeat", 1, "number of times to send the request")
	flags.BoolVarP(&opts.include, "include", "i", false, "print status line and response headers")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline activity")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	for _, method := range []string{"get", "delete", "head", "options", "post", "put", "patch"} {
		method := method
		root.AddCommand(&cobra.Command{
			Use:   method + " URL",
			Short: fmt.Sprintf("Send a %s request", strings.ToUpper(method)),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, log, opts, method, args[0])
			},
		})
	}

	return root
}

func run(cmd *cobra.Command, log zerolog.Logger, opts *options, method, target string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientOptions, err := buildClientOptions(cmd.Flags(), log, opts)
	if err != nil {
		return err
	}

	if opts.metricsAddr != "" {
		registry := prometheus.NewRegistry()
		clientOptions = append(clientOptions, kurir.WithMetricsCollector(kurir.NewMetricsCollectorWithRegistry(registry)))
		server := serveMetrics(log, opts.metricsAddr, registry)
		defer server.Close()
	}

	client := kurir.New(clientOptions...)
	if !client.IsValid() {
		return client.ValidationError()
	}

	config, err := buildRequestConfig(opts, method)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i := 0; i < opts.repeat; i++ {
		resp, err := client.RequestURL(ctx, target, config)
		if err != nil {
			var ce *kurir.ClientError
			if errors.As(err, &ce) && ce.Response != nil {
				printResponse(out, ce.Response, opts.include)
			}
			if kurir.IsCancel(err) {
				log.Warn().Msg("request cancelled")
			}
			return err
		}
		printResponse(out, resp, opts.include)
	}
	return nil
}

func buildClientOptions(flags *pflag.FlagSet, log zerolog.Logger, opts *options) ([]kurir.Option, error) {
	var clientOptions []kurir.Option

	if opts.configPath != "" {
		clientOptions = append(clientOptions, kurir.WithDefaultsFile(opts.configPath))
	} else {
		df := &kurir.DefaultsFile{}
		if err := kurir.ApplyEnvDefaults(df); err != nil {
			return nil, err
		}
		envDefaults, err := df.RequestConfig()
		if err != nil {
			return nil, err
		}
		clientOptions = append(clientOptions, kurir.WithDefaults(envDefaults))
	}

	// Flags win over the file and the environment.
	if flags.Changed("base-url") {
		clientOptions = append(clientOptions, kurir.WithBaseURL(opts.baseURL))
	}
	if flags.Changed("timeout") {
		clientOptions = append(clientOptions, kurir.WithTimeout(opts.timeout))
	}
	if opts.rate > 0 {
		clientOptions = append(clientOptions, kurir.WithRateLimit(opts.rate, opts.burst))
	}
	if opts.verbose {
		clientOptions = append(clientOptions,
			kurir.WithDebug(),
			kurir.WithLogger(kurir.NewZerologLogger(log.Level(zerolog.DebugLevel))),
		)
	}

	return clientOptions, nil
}

func buildRequestConfig(opts *options, method string) (*kurir.RequestConfig, error) {
	headers, err := parseHeaders(opts.headers)
	if err != nil {
		return nil, err
	}
	params, err := parseParams(opts.params)
	if err != nil {
		return nil, err
	}
	data, err := parseData(opts.data)
	if err != nil {
		return nil, err
	}

	config := &kurir.RequestConfig{
		Method:  method,
		Headers: headers,
		Data:    data,
	}
	if len(params) > 0 {
		config.Params = params
	}
	return config, nil
}

func parseHeaders(raw []string) (kurir.Headers, error) {
	headers := kurir.Headers{}
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected \"Name: value\"", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// parseParams collects key=value pairs. Repeated keys become a list.
func parseParams(raw []string) (map[string]any, error) {
	params := map[string]any{}
	for _, p := range raw {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q, expected key=value", p)
		}
		switch prev := params[key].(type) {
		case nil:
			params[key] = value
		case string:
			params[key] = []any{prev, value}
		case []any:
			params[key] = append(prev, value)
		}
	}
	return params, nil
}

func parseData(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "@") {
		b, err := os.ReadFile(strings.TrimPrefix(raw, "@"))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		raw = string(b)
	}

	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		return v, nil
	}
	return raw, nil
}

func printResponse(w io.Writer, resp *kurir.Response, include bool) {
	if include {
		fmt.Fprintf(w, "%d %s\n", resp.Status, resp.StatusText)
		names := make([]string, 0, len(resp.Headers))
		for name := range resp.Headers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "%s: %s\n", name, resp.Headers[name])
		}
		fmt.Fprintln(w)
	}

	switch data := resp.Data.(type) {
	case nil:
	case string:
		fmt.Fprintln(w, data)
	case []byte:
		_, _ = w.Write(data)
	default:
		b, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			fmt.Fprintln(w, data)
			return
		}
		fmt.Fprintln(w, string(b))
	}
}

func serveMetrics(log zerolog.Logger, addr string, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving metrics on /metrics")
	return server
}
