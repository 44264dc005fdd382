// Package docs holds the OpenAPI document served under /swagger/ when the
// binary is built with -tags=swagger. Regenerate with
// `swag init -g cmd/lamivid/docs.go -o docs`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/inpaint": {
            "post": {
                "description": "Fills the white area of mask in image. Accepts multipart \"image\"/\"mask\" files or a JSON body. Returns image/png unless Accept is application/json.",
                "consumes": ["application/json", "multipart/form-data"],
                "produces": ["image/png", "application/json"],
                "tags": ["inpaint"],
                "summary": "Inpaint an image",
                "parameters": [
                    {
                        "description": "Base64 payload (JSON form)",
                        "name": "request",
                        "in": "body",
                        "schema": {"$ref": "#/definitions/types.InpaintRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.InpaintResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/device": {
            "post": {
                "description": "Restarts the worker on cpu or cuda and returns once it is ready. 409 when the worker reported CUDA as unavailable.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["device"],
                "summary": "Switch the worker device",
                "parameters": [
                    {
                        "description": "Target device",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.DeviceRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Health"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Bridge status snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Health"}}
                }
            }
        }
    },
    "definitions": {
        "types.InpaintRequest": {
            "type": "object",
            "properties": {
                "image_b64": {"type": "string"},
                "mask_b64": {"type": "string"}
            }
        },
        "types.InpaintResponse": {
            "type": "object",
            "properties": {
                "output_b64": {"type": "string"},
                "warning": {"type": "string"}
            }
        },
        "types.DeviceRequest": {
            "type": "object",
            "properties": {
                "mode": {"type": "string", "example": "cuda"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "backend unavailable"},
                "code": {"type": "integer", "example": 503},
                "kind": {"type": "string", "example": "spawn_failure"}
            }
        },
        "types.Health": {
            "type": "object",
            "properties": {
                "ready": {"type": "boolean", "example": true},
                "device": {"type": "string", "example": "cuda"},
                "requestedDevice": {"type": "string", "example": "auto"},
                "cudaAvailable": {"type": "boolean", "example": true},
                "lastError": {"type": "string"},
                "warning": {"type": "string"},
                "state": {"type": "string", "example": "ready"},
                "pending": {"type": "integer", "example": 0},
                "pid": {"type": "integer", "example": 4242},
                "invocation": {"type": "string", "example": "python3 server/python/lama_worker.py"},
                "spawns": {"type": "integer", "example": 1},
                "crashes": {"type": "integer", "example": 0}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "lamivi API",
	Description:      "HTTP API in front of a local LaMa inpainting worker.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
