// Package devops provides the developer CLI for the todo application stack.
//
// The stack is a Gel database and a web application run together with
// docker compose. This repository only orchestrates it; the services,
// images and user-creation commands belong to the application itself.
//
// # Overview
//
// The devops CLI provides:
//   - service start, stop, down and purge over the compose manifest
//   - service start-dev, a guided first-time setup
//   - env create, which writes envs/cli.env
//   - service status, a quick health view of the database and web app
//
// # Installation
//
//	go install github.com/todo-stack/devops/cmd/devops@latest
//
// # Quick Start
//
//	devops service start-dev
//	devops service status
//	devops service down
//
// # Configuration
//
// Tool options resolve flags > DEVOPS_* environment > .devops/config.yaml > defaults.
// Connection settings for the database and web app are read from the env
// file (envs/cli.env by default), which env create generates.
package devops
