package main

// General API documentation for swaggo. Regenerate docs with `swag init -g cmd/lamivid/docs.go -o docs`.
//
// @title           lamivi API
// @version         1.0
// @description     HTTP API in front of a local LaMa inpainting worker.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
