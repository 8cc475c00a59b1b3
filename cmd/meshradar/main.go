/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mfreeman451/meshradar/pkg/config"
	httpx "github.com/mfreeman451/meshradar/pkg/http"
	"github.com/mfreeman451/meshradar/pkg/lifecycle"
	"github.com/mfreeman451/meshradar/pkg/logging"
	"github.com/mfreeman451/meshradar/pkg/server"
)

const serviceName = "meshradar"

var (
	errFailedToLoadConfig = errors.New("failed to load config")
	errNoAuthSecret       = errors.New("config has no auth secret")
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/meshradar/meshradar.json", "Path to config file (JSON or YAML)")
	issueToken := flag.String("issue-token", "", "Print a write token for the given subject and exit")
	tokenTTL := flag.Duration("token-ttl", 365*24*time.Hour, "Lifetime of an issued token")
	flag.Parse()

	var cfg config.Config

	if err := config.LoadAndValidate(*configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	if *issueToken != "" {
		return printToken(&cfg, *issueToken, *tokenTTL)
	}

	closer := logging.Setup(&cfg.Logging)
	defer closer.Close()

	log.Printf("Starting meshradar...")

	srv, err := server.NewServer(&cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	opts := lifecycle.ServerOptions{
		GRPCAddr:    cfg.GrpcAddr,
		ServiceName: serviceName,
		Service:     srv,
	}

	if err := lifecycle.RunServer(context.Background(), &opts); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func printToken(cfg *config.Config, subject string, ttl time.Duration) error {
	if cfg.Auth == nil || cfg.Auth.Secret == "" {
		return errNoAuthSecret
	}

	token, err := httpx.NewAuthenticator(cfg.Auth.Secret).Sign(subject, ttl)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(os.Stdout, token)

	return err
}
