// Package docs registers the Swagger document served under /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
	"schemes": {{ marshal .Schemes }},
	"swagger": "2.0",
	"info": {
		"description": "{{escape .Description}}",
		"title": "{{.Title}}",
		"contact": {},
		"version": "{{.Version}}"
	},
	"host": "{{.Host}}",
	"basePath": "{{.BasePath}}",
	"paths": {
		"/health": {
			"get": {
				"summary": "Liveness probe",
				"tags": [
					"system"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/auth/login": {
			"post": {
				"summary": "Issue an admin token",
				"tags": [
					"auth"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/LoginResponse"
						}
					},
					"429": {
						"description": "Too Many Requests",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/LoginRequest"
						}
					}
				]
			}
		},
		"/api/admin/config": {
			"get": {
				"summary": "Show settings with the credential masked",
				"tags": [
					"admin"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/SettingsResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			},
			"post": {
				"summary": "Update settings",
				"tags": [
					"admin"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/SettingsResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/UpdateSettingsRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/admin/status": {
			"get": {
				"summary": "Runtime and disbursement counters",
				"tags": [
					"admin"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/StatusResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/admin/start": {
			"post": {
				"summary": "Start the periodic drivers",
				"tags": [
					"admin"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/RuntimeResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/admin/stop": {
			"post": {
				"summary": "Stop the periodic drivers",
				"tags": [
					"admin"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/RuntimeResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/admin/reset": {
			"post": {
				"summary": "Purge all disbursements and identities and regenerate the pool",
				"tags": [
					"admin"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/ResetResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/admin/schedule/run": {
			"post": {
				"summary": "Run one scheduling cycle now",
				"tags": [
					"admin"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/ScheduleRunResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/admin/settle/run": {
			"post": {
				"summary": "Run one settlement tick now",
				"tags": [
					"admin"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/SettleRunResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/admin/wallets/export": {
			"get": {
				"summary": "Download every identity as CSV",
				"tags": [
					"admin"
				],
				"produces": [
					"text/csv"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/wallets/summary": {
			"get": {
				"summary": "Count recipient identities by state",
				"tags": [
					"wallets"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/IdentitySummaryResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/distributions/recent": {
			"get": {
				"summary": "List the newest disbursements",
				"tags": [
					"distributions"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/RecentResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "query",
						"name": "limit",
						"type": "integer",
						"required": false
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		}
	},
	"definitions": {
		"ErrorResponse": {
			"type": "object",
			"properties": {
				"code": {
					"type": "string"
				},
				"message": {
					"type": "string"
				}
			}
		},
		"LoginRequest": {
			"type": "object",
			"properties": {
				"user_id": {
					"type": "string"
				},
				"password": {
					"type": "string"
				}
			}
		},
		"LoginResponse": {
			"type": "object",
			"properties": {
				"token": {
					"type": "string"
				},
				"expires_at": {
					"type": "string"
				}
			}
		},
		"SettingsResponse": {
			"type": "object",
			"properties": {
				"token_ref": {
					"type": "string"
				},
				"amount_ceiling": {
					"type": "string"
				},
				"treasury_credential": {
					"type": "string"
				},
				"daily_target": {
					"type": "integer"
				},
				"lifetime_target": {
					"type": "integer"
				},
				"updated_at": {
					"type": "string"
				}
			}
		},
		"UpdateSettingsRequest": {
			"type": "object",
			"properties": {
				"token_ref": {
					"type": "string"
				},
				"amount_ceiling": {
					"type": "string"
				},
				"treasury_credential": {
					"type": "string"
				},
				"daily_target": {
					"type": "integer"
				},
				"lifetime_target": {
					"type": "integer"
				}
			}
		},
		"StatusResponse": {
			"type": "object",
			"properties": {
				"running": {
					"type": "boolean"
				},
				"next_pending_at": {
					"type": "string"
				},
				"pending_count": {
					"type": "integer"
				},
				"submitted_count": {
					"type": "integer"
				},
				"confirmed_count": {
					"type": "integer"
				},
				"failed_count": {
					"type": "integer"
				},
				"idle_identities": {
					"type": "integer"
				}
			}
		},
		"IdentitySummaryResponse": {
			"type": "object",
			"properties": {
				"total": {
					"type": "integer"
				},
				"unused": {
					"type": "integer"
				},
				"reserved": {
					"type": "integer"
				},
				"used": {
					"type": "integer"
				}
			}
		},
		"RuntimeResponse": {
			"type": "object",
			"properties": {
				"running": {
					"type": "boolean"
				}
			}
		},
		"ResetResponse": {
			"type": "object",
			"properties": {
				"reset": {
					"type": "boolean"
				},
				"created": {
					"type": "integer"
				}
			}
		},
		"ScheduleRunResponse": {
			"type": "object",
			"properties": {
				"scheduled_count": {
					"type": "integer"
				},
				"reason": {
					"type": "string"
				}
			}
		},
		"SweepDTO": {
			"type": "object",
			"properties": {
				"processed": {
					"type": "integer"
				},
				"submitted": {
					"type": "integer"
				},
				"confirmed": {
					"type": "integer"
				},
				"failed": {
					"type": "integer"
				},
				"deferred": {
					"type": "integer"
				}
			}
		},
		"SettleRunResponse": {
			"type": "object",
			"properties": {
				"submission": {
					"$ref": "#/definitions/SweepDTO"
				},
				"confirmation": {
					"$ref": "#/definitions/SweepDTO"
				}
			}
		},
		"DisbursementDTO": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"identity_id": {
					"type": "string"
				},
				"token_ref": {
					"type": "string"
				},
				"amount": {
					"type": "string"
				},
				"status": {
					"type": "string"
				},
				"scheduled_for": {
					"type": "string"
				},
				"ledger_tx_ref": {
					"type": "string"
				},
				"failure_reason": {
					"type": "string"
				},
				"created_at": {
					"type": "string"
				},
				"updated_at": {
					"type": "string"
				}
			}
		},
		"RecentResponse": {
			"type": "object",
			"properties": {
				"items": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/DisbursementDTO"
					}
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "tokendrip admin API",
	Description:      "Operator API for the token disbursement scheduler and settlement engine.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
