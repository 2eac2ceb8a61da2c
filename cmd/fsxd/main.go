// Command fsxd runs the multi-tenant virtual filesystem service: the VFS,
// tiered placement, CAS, RPC and watch surfaces described by the service
// this repository implements.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fsxd/fsxd/auth"
	"github.com/fsxd/fsxd/server"
	"github.com/fsxd/fsxd/tier"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var opts struct {
	tenantRoot         string
	listenAddr         string
	hotMaxSize         int64
	warmMaxSize        int64
	promotionPolicy    string
	promotionThreshold int64
	heartbeatInterval  time.Duration
	connectionTimeout  time.Duration
	allowAnonymousRead bool
	jwtSecret          string
	jwtPublicKeyFile   string
	jwtIssuer          string
	jwtAudience        string
	logLevel           string
}

var commandDefinition = &cobra.Command{
	Use:   "fsxd",
	Short: "Run the fsxd virtual filesystem server",
	Long: `fsxd serves a multi-tenant POSIX-shaped virtual filesystem over a
JSON-RPC surface and a change-notification websocket, placing object
bytes across hot/warm/cold storage tiers with content-addressed
deduplication.`,
	RunE: run,
}

func init() {
	flags := commandDefinition.Flags()
	flags.StringVar(&opts.tenantRoot, "tenant-root", "/", "root path for this tenant's namespace")
	flags.StringVar(&opts.listenAddr, "listen", ":8080", "HTTP listen address")
	flags.Int64Var(&opts.hotMaxSize, "hot-max-size", 1<<20, "maximum object size (bytes) placed in the hot tier")
	flags.Int64Var(&opts.warmMaxSize, "warm-max-size", 1<<28, "maximum object size (bytes) placed in the warm tier")
	flags.StringVar(&opts.promotionPolicy, "promotion-policy", "none", "promotion policy: none, on-access, aggressive")
	flags.Int64Var(&opts.promotionThreshold, "promotion-threshold", 3, "access-count threshold for on-access promotion")
	flags.DurationVar(&opts.heartbeatInterval, "heartbeat-interval", 30*time.Second, "watch channel heartbeat interval")
	flags.DurationVar(&opts.connectionTimeout, "connection-timeout", 90*time.Second, "watch channel idle timeout")
	flags.BoolVar(&opts.allowAnonymousRead, "allow-anonymous-read", false, "permit unauthenticated read-scope tool calls")
	flags.StringVar(&opts.jwtSecret, "jwt-secret", "", "HMAC secret for HS256/384/512 token verification")
	flags.StringVar(&opts.jwtPublicKeyFile, "jwt-public-key-file", "", "PEM file holding the RSA public key for RS256/384/512 token verification")
	flags.StringVar(&opts.jwtIssuer, "jwt-issuer", "", "required JWT issuer (empty disables the check)")
	flags.StringVar(&opts.jwtAudience, "jwt-audience", "", "required JWT audience (empty disables the check)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

func run(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", opts.logLevel, err)
	}
	log.SetLevel(level)
	entry := logrus.NewEntry(log).WithField("component", "fsxd")

	var publicKeyPEM []byte
	if opts.jwtPublicKeyFile != "" {
		publicKeyPEM, err = os.ReadFile(opts.jwtPublicKeyFile)
		if err != nil {
			return fmt.Errorf("reading --jwt-public-key-file: %w", err)
		}
	}

	cfg := server.Config{
		TenantRoot:         opts.tenantRoot,
		HotMaxSize:         opts.hotMaxSize,
		WarmMaxSize:        opts.warmMaxSize,
		Promotion:          tier.PromotionPolicy(opts.promotionPolicy),
		PromotionThreshold: opts.promotionThreshold,
		HeartbeatInterval:  opts.heartbeatInterval,
		ConnectionTimeout:  opts.connectionTimeout,
		AllowAnonymousRead: opts.allowAnonymousRead,
		JWT: auth.Config{
			Secret:       []byte(opts.jwtSecret),
			PublicKeyPEM: publicKeyPEM,
			Issuer:       opts.jwtIssuer,
			Audience:     opts.jwtAudience,
		},
	}

	srv := server.New(cfg, entry)
	return srv.ListenAndServe(opts.listenAddr)
}

func main() {
	if err := commandDefinition.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
