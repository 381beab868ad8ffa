// Command account is a CLI client for the account service.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/and161185/account-keeper/internal/convert"
	grpcserver "github.com/and161185/account-keeper/internal/server/grpc"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "account-keeper")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "account-keeper")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(t convert.TokenResponse, userID string) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: t.AccessToken, ExpiresAt: t.ExpiresAt, UserID: userID})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", errors.New("no saved token (login required)")
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// ---- grpc dial ----

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

type connOpts struct {
	addr      string
	caPath    string
	insecure  bool
	plaintext bool
}

func loadTLS(o connOpts) (credentials.TransportCredentials, error) {
	switch {
	case o.plaintext:
		return insecure.NewCredentials(), nil
	case o.insecure:
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	case o.caPath == "":
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(o.caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

// dialFunc is replaced in tests.
var dialFunc = func(ctx context.Context, o connOpts, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	creds, err := loadTLS(o)
	if err != nil {
		return nil, err
	}
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, extra...)
	//nolint:staticcheck // DialContext is supported through 1.x; migrate when grpc.NewClient is stable
	return grpc.DialContext(ctx, o.addr, opts...)
}

func dial(ctx context.Context, o connOpts, bearer string) (*grpc.ClientConn, *grpcserver.Client, error) {
	var extra []grpc.DialOption
	if bearer != "" {
		extra = append(extra, grpc.WithPerRPCCredentials(bearerCreds{token: bearer, secure: !o.plaintext}))
	}
	cc, err := dialFunc(ctx, o, extra...)
	if err != nil {
		return nil, nil, err
	}
	return cc, grpcserver.NewClient(cc), nil
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// describe renders an RPC error with its code and details when the server sent them.
func describe(err error) string {
	rep, ok := grpcserver.FromStatus(err)
	if !ok {
		return err.Error()
	}
	s := rep.Code + ": " + rep.Message
	if len(rep.Details) > 0 {
		if b, e := json.Marshal(rep.Details); e == nil {
			s += " " + string(b)
		}
	}
	return s
}

const usageText = `account CLI
Usage:
  account -addr HOST:PORT [-cacert file | -insecure | -plaintext] <cmd> [args]

Commands:
  version
  register   -e <email> -p <password>                    (saves token)
  login      -e <email> -p <password>                    (saves token)
  me
  update     -version <v> [-email e] [-password p] [-active true|false]
  delete     [-version <v>]                              (no version: unconditional)
  restore    -version <v>
`

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run dispatches subcommands and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	gfs := flag.NewFlagSet("account", flag.ContinueOnError)
	gfs.SetOutput(stderr)
	gfs.Usage = func() { fmt.Fprint(stderr, usageText) }
	var o connOpts
	gfs.StringVar(&o.addr, "addr", "localhost:9090", "server addr")
	gfs.StringVar(&o.caPath, "cacert", "", "CA cert (PEM)")
	gfs.BoolVar(&o.insecure, "insecure", false, "skip cert verify (dev)")
	gfs.BoolVar(&o.plaintext, "plaintext", false, "no TLS (dev)")
	if err := gfs.Parse(args); err != nil {
		return 2
	}
	if gfs.NArg() < 1 {
		gfs.Usage()
		return 2
	}
	cmd, rest := gfs.Arg(0), gfs.Args()[1:]

	fail := func(err error) int {
		fmt.Fprintln(stderr, "error:", describe(err))
		return 1
	}

	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "account %s (%s)\n", version, buildDate)
		return 0

	case "register", "login":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(stderr)
		email := fs.String("e", "", "email")
		pass := fs.String("p", "", "password")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		if *email == "" || *pass == "" {
			fmt.Fprintln(stderr, "need -e and -p")
			return 2
		}
		cc, cli, err := dial(ctx, o, "")
		if err != nil {
			return fail(err)
		}
		defer cc.Close()

		var resp *convert.AuthResponse
		if cmd == "register" {
			resp, err = cli.Register(ctx, &convert.RegisterRequest{Email: *email, Password: *pass})
		} else {
			resp, err = cli.Login(ctx, &convert.LoginRequest{Email: *email, Password: *pass})
		}
		if err != nil {
			return fail(err)
		}
		if err := saveToken(resp.Token, resp.User.ID); err != nil {
			return fail(err)
		}
		printJSON(stdout, resp.User)
		return 0

	case "me", "update", "delete", "restore":
		return runAuthed(ctx, o, cmd, rest, stdout, stderr, fail)

	default:
		gfs.Usage()
		return 2
	}
}

func runAuthed(ctx context.Context, o connOpts, cmd string, rest []string, stdout, stderr io.Writer, fail func(error) int) int {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	ver := fs.String("version", "", "version last seen")
	email := fs.String("email", "", "new email")
	pass := fs.String("password", "", "new password")
	active := fs.String("active", "", "true|false")
	if err := fs.Parse(rest); err != nil {
		return 2
	}

	token, err := loadToken()
	if err != nil {
		return fail(err)
	}
	cc, cli, err := dial(ctx, o, token)
	if err != nil {
		return fail(err)
	}
	defer cc.Close()

	var out *convert.UserResponse
	switch cmd {
	case "me":
		out, err = cli.GetMe(ctx)
	case "update":
		req := convert.UpdateUserRequest{Version: *ver}
		if *email != "" {
			req.Email = email
		}
		if *pass != "" {
			req.Password = pass
		}
		if *active != "" {
			b, perr := strconv.ParseBool(*active)
			if perr != nil {
				fmt.Fprintln(stderr, "bad -active:", perr)
				return 2
			}
			req.IsActive = &b
		}
		out, err = cli.UpdateMe(ctx, &req)
	case "delete":
		out, err = cli.DeleteMe(ctx, &convert.VersionRequest{Version: *ver})
	case "restore":
		out, err = cli.RestoreMe(ctx, &convert.VersionRequest{Version: *ver})
	}
	if err != nil {
		return fail(err)
	}
	printJSON(stdout, out)
	return 0
}
