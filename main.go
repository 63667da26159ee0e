package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"push-relay/config"
	"push-relay/credentials"
	"push-relay/firebaseapp"
	"push-relay/handlers"
	"push-relay/logging"
	"push-relay/metrics"
	"push-relay/middleware"
	"push-relay/relay"
	"push-relay/store"
	"push-relay/tokens"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	certFile := flag.String("cert", "", "Path to TLS certificate file")
	keyFile := flag.String("key", "", "Path to TLS key file")
	addr := flag.String("addr", "", "Address to listen on")
	creds := flag.String("creds", "", "Path to service account credentials file")
	authMode := flag.String("auth", "", "Caller auth mode: none, jwt or firebase")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	httpMode := flag.Bool("http", false, "Run in HTTP mode (disable TLS)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Flags win over file and environment when explicitly set.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cert":
			cfg.CertFile = *certFile
		case "key":
			cfg.KeyFile = *keyFile
		case "addr":
			cfg.Addr = *addr
		case "creds":
			cfg.CredentialsFile = *creds
		case "auth":
			cfg.AuthMode = *authMode
		case "log-level":
			cfg.LogLevel = *logLevel
		case "http":
			cfg.HTTPMode = *httpMode
		}
	})

	closeLog, err := logging.Init(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	log := logging.Component("http")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := run(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}

	errCh := make(chan error, 1)
	go func() {
		if cfg.HTTPMode {
			log.Info().Str("addr", cfg.Addr).Msg("server listening (HTTP - TLS disabled)")
			log.Warn().Msg("traffic is unencrypted, ensure you are running behind a secure proxy")
			errCh <- srv.ListenAndServe()
			return
		}

		if _, err := os.Stat(cfg.CertFile); os.IsNotExist(err) {
			log.Info().Str("cert", cfg.CertFile).Msg("certificate not found, generating self-signed certificate")
			if err := generateSelfSignedCert(cfg.CertFile, cfg.KeyFile); err != nil {
				errCh <- fmt.Errorf("failed to generate certificate: %w", err)
				return
			}
		} else {
			log.Info().Str("cert", cfg.CertFile).Msg("using existing certificate")
		}
		log.Info().Str("addr", cfg.Addr).Msg("server listening (TLS 1.3 strict)")
		errCh <- srv.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}
}

// run wires the relay and returns a configured, not yet listening, server.
// Resources it opens are released by srv.Shutdown.
func run(ctx context.Context, cfg *config.Config) (*http.Server, error) {
	cred, err := credentials.Load(cfg.CredentialsFile, cfg.CredentialsJSON)
	if err != nil {
		return nil, err
	}
	tokensLog := logging.Component("tokens")
	tokensLog.Info().Stringer("credential", cred).Msg("service account loaded")

	manager := tokens.NewManager(
		tokens.NewJWTExchanger(cred, &http.Client{}),
		tokens.WithMargin(cfg.TokenMargin),
		tokens.WithTimeout(cfg.TokenTimeout),
	)
	fcm := relay.New(manager, cred.ProjectID,
		relay.WithEndpoint(cfg.FCMEndpoint),
		relay.WithTimeout(cfg.SendTimeout),
	)

	middleware.SetJWTSecret(cfg.JWTSecret)

	var s store.Store
	if cfg.DBPath != "" {
		sqlite, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		s = sqlite
		setupAdminUser(s, cfg.InitialAdminPassword)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog())

	router.GET("/healthz", handlers.HealthHandler())
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(metrics.PromHandler()))
	}

	callerAuth, err := callerAuthChain(ctx, cfg, cred.ProjectID, manager)
	if err != nil {
		if s != nil {
			s.Close()
		}
		return nil, err
	}
	router.POST("/sendNotification", append(callerAuth, handlers.SendNotificationHandler(fcm))...)

	if s != nil {
		// Public routes (no auth)
		router.POST("/admin/login", handlers.LoginHandler(s))

		auth := router.Group("/")
		auth.Use(middleware.JWTAuthMiddleware())
		{
			auth.POST("/refresh", handlers.RefreshHandler())

			admin := auth.Group("/admin")
			admin.Use(middleware.RequireRole(store.RoleAdmin))
			{
				admin.POST("/users", handlers.CreateUserHandler(s))
				admin.DELETE("/users/:username", handlers.DeleteUserHandler(s))
				admin.GET("/users", handlers.ListUsersHandler(s))
				admin.GET("/token", handlers.GetTokenHandler(s))
				admin.GET("/stats", handlers.StatsHandler())
			}
		}
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s != nil {
		server.RegisterOnShutdown(func() { s.Close() })
	}

	if !cfg.HTTPMode {
		// Configure TLS 1.3 Strict
		server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	fcmLog := logging.Component("fcm")
	fcmLog.Info().
		Str("endpoint", fcm.Endpoint()).
		Str("auth_mode", cfg.AuthMode).
		Msg("relay ready")
	return server, nil
}

// callerAuthChain returns the middleware guarding /sendNotification.
func callerAuthChain(ctx context.Context, cfg *config.Config, projectID string, manager *tokens.Manager) ([]gin.HandlerFunc, error) {
	switch cfg.AuthMode {
	case config.AuthNone:
		authLog := logging.Component("auth")
		authLog.Warn().Msg("caller authentication disabled")
		return nil, nil
	case config.AuthFirebase:
		app, err := firebaseapp.New(ctx, projectID, manager.TokenSource(context.WithoutCancel(ctx)))
		if err != nil {
			return nil, err
		}
		return []gin.HandlerFunc{middleware.FirebaseAuthMiddleware(app.Auth())}, nil
	default:
		return []gin.HandlerFunc{
			middleware.JWTAuthMiddleware(),
			middleware.RequireRole(store.RoleSender, store.RoleAdmin),
		}, nil
	}
}

func setupAdminUser(s store.Store, password string) {
	log := logging.Component("auth")

	hasAdmin, err := s.HasAdminUser()
	if err != nil {
		log.Error().Err(err).Msg("failed to check for admin user")
		return
	}
	if hasAdmin {
		return
	}

	// A user named "admin" may exist with a lesser role.
	_, err = s.GetUser("admin")
	if err == nil {
		if err := s.UpdateUserRole("admin", store.RoleAdmin); err != nil {
			log.Error().Err(err).Msg("failed to promote 'admin' user")
			return
		}
		log.Warn().Msg("promoted existing user 'admin' to admin role")
		return
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		log.Error().Err(err).Msg("failed to check for existing 'admin' username")
		return
	}

	generated := password == ""
	if generated {
		password = rand.Text()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("failed to hash password")
		return
	}

	if err := s.CreateUser("admin", string(hash), store.RoleAdmin); err != nil {
		log.Error().Err(err).Msg("failed to create admin user")
		return
	}

	event := log.Warn().Str("username", "admin")
	if generated {
		event = event.Str("password", password)
	}
	event.Msg("admin user created")
}

func generateSelfSignedCert(certPath, keyPath string) error {
	// ensure directory exists
	if err := os.MkdirAll(filepath.Dir(certPath), 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(keyPath), 0755); err != nil {
		return err
	}

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return err
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"push-relay"},
		},
		NotBefore: time.Now(),
		NotAfter:  time.Now().Add(365 * 24 * time.Hour),

		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return err
	}

	certOut, err := os.Create(certPath)
	if err != nil {
		return err
	}
	defer certOut.Close()
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes}); err != nil {
		return err
	}

	keyOut, err := os.OpenFile(keyPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer keyOut.Close()
	privBytes := x509.MarshalPKCS1PrivateKey(priv)
	return pem.Encode(keyOut, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: privBytes})
}
