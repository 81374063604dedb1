// Package test runs the API against a real Postgres instance managed
// with dockertest. Each test gets its own database on the shared
// container.
package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/osanval/cafeto/api"
	"github.com/osanval/cafeto/api/background"
	"github.com/osanval/cafeto/core/claims"
	"github.com/osanval/cafeto/core/user"
	"github.com/osanval/cafeto/database"
	"github.com/osanval/cafeto/rate"
	"github.com/osanval/cafeto/random"
	"github.com/osanval/cafeto/storage"
	"github.com/osanval/cafeto/validate"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	baseDB *sqlx.DB
	pgHost string
)

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("connecting to docker: %v", err)
	}

	res, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15-alpine",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_DB=postgres",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("starting postgres container: %v", err)
	}
	defer func() {
		if err := pool.Purge(res); err != nil {
			log.Printf("purging postgres container: %v", err)
		}
	}()

	// Belt and braces in case a run is interrupted.
	_ = res.Expire(600)

	pgHost = res.GetHostPort("5432/tcp")
	cfg := database.Config{
		User:       "postgres",
		Password:   "postgres",
		Host:       pgHost,
		Name:       "postgres",
		DisableTLS: true,
	}

	pool.MaxWait = time.Minute
	if err := pool.Retry(func() error {
		db, err := database.Open(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		return database.StatusCheck(context.Background(), db)
	}); err != nil {
		log.Fatalf("waiting for postgres: %v", err)
	}

	baseDB, err = database.Open(cfg)
	if err != nil {
		log.Fatalf("opening base connection: %v", err)
	}
	defer baseDB.Close()

	return m.Run()
}

type TestEnv struct {
	DB     *sqlx.DB
	Log    *logrus.Logger
	Server *httptest.Server
	URL    string

	StorageDir string

	AdminEmail string
	AdminPass  string
	UserEmail  string
	UserPass   string
	OtherEmail string
	OtherPass  string

	client *http.Client
}

// NewTestEnv creates a fresh database named after the test, migrates it,
// seeds an admin and two regular users and starts the API on a test
// server.
func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	t.Helper()

	if _, err := baseDB.Exec("CREATE DATABASE " + name); err != nil {
		return nil, fmt.Errorf("creating database %s: %w", name, err)
	}

	db, err := database.Open(database.Config{
		User:       "postgres",
		Password:   "postgres",
		Host:       pgHost,
		Name:       name,
		DisableTLS: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", name, err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating database %s: %w", name, err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	session := scs.New()
	session.Lifetime = time.Hour

	dir := t.TempDir()
	store, err := storage.New(dir, "/static")
	if err != nil {
		return nil, fmt.Errorf("preparing storage: %w", err)
	}

	// Generous limits so only the dedicated test can trip the limiter.
	limiter := rate.NewLimiter(1000, 100, rate.Every(time.Microsecond))

	mux := api.APIMux(api.APIConfig{
		Log:          logger,
		DB:           db,
		Session:      session,
		Background:   background.New(logger),
		Storage:      store,
		LoginLimiter: limiter,
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		db.Close()
	})

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	env := &TestEnv{
		DB:         db,
		Log:        logger,
		Server:     srv,
		URL:        srv.URL,
		StorageDir: dir,
		AdminEmail: "admin@test.com",
		AdminPass:  random.String(16),
		UserEmail:  "user@test.com",
		UserPass:   random.String(16),
		OtherEmail: "other@test.com",
		OtherPass:  random.String(16),
		client:     &http.Client{Jar: jar},
	}

	if err := env.seedUser(env.AdminEmail, env.AdminPass, claims.RoleAdmin); err != nil {
		return nil, err
	}
	if err := env.seedUser(env.UserEmail, env.UserPass, claims.RoleUser); err != nil {
		return nil, err
	}
	if err := env.seedUser(env.OtherEmail, env.OtherPass, claims.RoleUser); err != nil {
		return nil, err
	}

	return env, nil
}

// Client returns the shared cookie-carrying client, so a login stays in
// effect for subsequent requests.
func (te *TestEnv) Client() *http.Client { return te.client }

func (te *TestEnv) seedUser(email, pass, role string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("hashing seed password: %w", err)
	}

	now := time.Now().UTC()
	usr := user.User{
		ID:           validate.GenerateID(),
		Email:        email,
		Name:         email,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := user.Create(context.Background(), te.DB, usr); err != nil {
		return fmt.Errorf("seeding user %s: %w", email, err)
	}

	return nil
}

func Login(te *TestEnv, email, pass string) error {
	body := map[string]string{"email": email, "password": pass}

	w, err := postJSON(te, "/auth/login", body)
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		return fmt.Errorf("login as %s: status code %s", email, w.Status)
	}
	return nil
}

func Logout(te *TestEnv) error {
	w, err := postJSON(te, "/auth/logout", nil)
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNoContent {
		return fmt.Errorf("logout: status code %s", w.Status)
	}
	return nil
}

func postJSON(te *TestEnv, path string, body interface{}) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	return te.Client().Post(te.URL+path, "application/json", &buf)
}

// request sends a JSON request and decodes the response into out when a
// non-nil pointer is given.
func (te *TestEnv) request(t *testing.T, method, path string, body interface{}, wantStatus int, out interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}

	r, err := http.NewRequest(method, te.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	w, err := te.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != wantStatus {
		raw, _ := io.ReadAll(w.Body)
		t.Fatalf("%s %s: status code %s, body %s", method, path, w.Status, raw)
	}

	if out != nil {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s response: %v", method, path, err)
		}
	}
}
