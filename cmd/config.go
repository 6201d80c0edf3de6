/*******************************************************************************
 * Copyright (c) 2026 Genome Research Ltd.
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

package cmd

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/wtsi-npg/npg-irods/bolt"
	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/mlwh"
)

const (
	envStore      = "NPG_IRODS_STORE"
	envMLWHSQLite = "MLWH_SQLITE"

	// defaultThreads is a quarter more than defaultClients.
	defaultClients = 4
	defaultThreads = 5
)

var errStoreRequired = errors.New("--store or " + envStore + " must be set")

var dotEnvKeys = append([]string{envStore, envMLWHSQLite}, mlwh.EnvKeys...) //nolint:gochecknoglobals

// loadDotEnv sets any of our environment variables found in .env or
// .env.local that are not already set in the real environment.
func loadDotEnv() {
	orig := originalEnvKeys(dotEnvKeys)

	loadDotEnvFile(".env", orig)
	loadDotEnvFile(".env.local", orig)
}

func originalEnvKeys(keys []string) map[string]struct{} {
	orig := map[string]struct{}{}

	for _, key := range keys {
		if _, ok := os.LookupEnv(key); ok {
			orig[key] = struct{}{}
		}
	}

	return orig
}

func loadDotEnvFile(path string, orig map[string]struct{}) {
	env, err := godotenv.Read(path)
	if err != nil {
		return
	}

	for _, key := range dotEnvKeys {
		val, ok := env[key]
		if !ok {
			continue
		}

		if _, ok := orig[key]; ok {
			continue
		}

		_ = os.Setenv(key, val)
	}
}

func requiredFlagOrEnv(flagValue string, envKey string, missing error) (string, error) {
	v := strings.TrimSpace(flagValue)
	if v != "" {
		return v, nil
	}

	v = strings.TrimSpace(os.Getenv(envKey))
	if v == "" {
		return "", missing
	}

	return v, nil
}

func flagOrEnv(flagValue string, envKey string) string {
	v, _ := requiredFlagOrEnv(flagValue, envKey, nil)

	return v
}

// storeOptions are the flags of subcommands that use the iRODS store.
type storeOptions struct {
	path    string
	clients int
}

func (o *storeOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.path, "store", "", "path to the store database (default $"+envStore+")")
	cmd.Flags().IntVar(&o.clients, "clients", defaultClients, "maximum number of concurrent store clients")
}

// open opens the store, limiting the number of calls in flight to the number
// of clients.
func (o *storeOptions) open() (*bolt.Store, irods.Store, error) { //nolint:ireturn
	loadDotEnv()

	path, err := requiredFlagOrEnv(o.path, envStore, errStoreRequired)
	if err != nil {
		return nil, nil, err
	}

	s, err := bolt.Open(path)
	if err != nil {
		return nil, nil, err
	}

	return s, irods.NewPooledStore(s, o.clients), nil
}

// warehouseOptions are the flags of subcommands that query the warehouse.
type warehouseOptions struct {
	host   string
	port   int
	schema string
	user   string
	sqlite string
}

func (o *warehouseOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.host, "mlwh-host", "", "warehouse host (default $"+mlwh.EnvHost+")")
	cmd.Flags().IntVar(&o.port, "mlwh-port", 0, "warehouse port (default $"+mlwh.EnvPort+" or 3306)")
	cmd.Flags().StringVar(&o.schema, "mlwh-schema", "", "warehouse schema (default $"+mlwh.EnvSchema+")")
	cmd.Flags().StringVar(&o.user, "mlwh-user", "", "warehouse user (default $"+mlwh.EnvUser+")")
	cmd.Flags().StringVar(&o.sqlite, "mlwh-sqlite", "",
		"use this SQLite warehouse snapshot instead of MySQL (default $"+envMLWHSQLite+")")
}

// open connects to the warehouse. The password is only ever taken from the
// environment.
func (o *warehouseOptions) open() (*mlwh.DB, error) {
	loadDotEnv()

	if path := flagOrEnv(o.sqlite, envMLWHSQLite); path != "" {
		return mlwh.OpenSQLite(path)
	}

	cfg, err := mlwh.Config{
		Host:   o.host,
		Port:   o.port,
		Schema: o.schema,
		User:   o.user,
	}.ConfigFromEnv()
	if err != nil {
		return nil, err
	}

	return mlwh.Open(cfg)
}
