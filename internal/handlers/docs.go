package handlers

import (
	"encoding/json"
	"net/http"
)

func queryParam(name, description string, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      schema,
	}
}

func pathParam(name, description string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "path",
		"description": description,
		"required":    true,
		"schema":      map[string]string{"type": "string"},
	}
}

func jsonResponse(description string, schema interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		},
	}
}

func ref(name string) map[string]string {
	return map[string]string{"$ref": "#/components/schemas/" + name}
}

func jsonBody(schema interface{}) map[string]interface{} {
	return map[string]interface{}{
		"required": true,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		},
	}
}

var (
	stringSchema  = map[string]interface{}{"type": "string"}
	integerSchema = map[string]interface{}{"type": "integer"}
	numberSchema  = map[string]interface{}{"type": "number", "nullable": true}
	dateSchema    = map[string]interface{}{"type": "string", "format": "date"}
	clockSchema   = map[string]interface{}{"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"}
	errorResponse = jsonResponse("Error", ref("Error"))
)

func historyParams() []map[string]interface{} {
	return []map[string]interface{}{
		queryParam("date_from", "First day of the range (YYYY-MM-DD)", dateSchema),
		queryParam("date_to", "Last day of the range (YYYY-MM-DD)", dateSchema),
		queryParam("time_from", "Daily window start (HH:MM), requires time_to", clockSchema),
		queryParam("time_to", "Daily window end (HH:MM), requires time_from", clockSchema),
		queryParam("severity", "safe, warning or critical (caution is accepted for warning)", map[string]interface{}{
			"type": "string", "enum": []string{"safe", "warning", "critical", "caution"},
		}),
		queryParam("parameter", "temperature, ph, salinity, turbidity or do", stringSchema),
		queryParam("sort", "newest or oldest (default newest)", map[string]interface{}{
			"type": "string", "enum": []string{"newest", "oldest"},
		}),
	}
}

func schemas() map[string]interface{} {
	return map[string]interface{}{
		"Error": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"error":     stringSchema,
				"message":   stringSchema,
				"code":      integerSchema,
				"field":     stringSchema,
				"failed":    map[string]interface{}{"type": "array", "items": stringSchema},
				"succeeded": map[string]interface{}{"type": "array", "items": stringSchema},
			},
		},
		"Reading": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"key":         stringSchema,
				"timestamp":   map[string]interface{}{"type": "integer", "description": "Unix milliseconds"},
				"temperature": numberSchema,
				"ph":          numberSchema,
				"salinity":    numberSchema,
				"turbidity":   numberSchema,
				"do":          numberSchema,
			},
		},
		"Alert": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id":             stringSchema,
				"parameter":      stringSchema,
				"value":          map[string]interface{}{"type": "number"},
				"severity":       map[string]interface{}{"type": "string", "enum": []string{"warning", "critical"}},
				"threshold":      stringSchema,
				"message":        stringSchema,
				"timestamp":      integerSchema,
				"acknowledged":   map[string]interface{}{"type": "boolean"},
				"acknowledgedAt": integerSchema,
				"acknowledgedBy": stringSchema,
				"sourceId":       stringSchema,
			},
		},
		"Summary": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"min":   map[string]interface{}{"type": "number"},
				"max":   map[string]interface{}{"type": "number"},
				"avg":   map[string]interface{}{"type": "number"},
				"count": integerSchema,
			},
		},
		"HistoryPage": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"data":       map[string]interface{}{"type": "array", "items": ref("Reading")},
				"total":      integerSchema,
				"page":       integerSchema,
				"pageSize":   integerSchema,
				"totalPages": integerSchema,
				"statistics": map[string]interface{}{"type": "object", "additionalProperties": ref("Summary")},
				"noData":     map[string]interface{}{"type": "boolean"},
				"moved":      map[string]interface{}{"type": "boolean"},
			},
		},
		"ThresholdBand": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"safeMin": map[string]interface{}{"type": "number"},
				"safeMax": map[string]interface{}{"type": "number"},
				"warnMin": map[string]interface{}{"type": "number"},
				"warnMax": map[string]interface{}{"type": "number"},
			},
		},
		"DeviceStatus": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"wifiConnected": map[string]interface{}{"type": "boolean"},
				"wifiSSID":      stringSchema,
				"updatedAt":     integerSchema,
			},
		},
	}
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the FISHDA Pond Monitor API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "FISHDA Pond Monitor API",
			"description": "Pond water-quality monitoring: sensor feed ingestion, threshold alerts, history queries and exports",
			"version":     "1.0.0",
			"contact": map[string]string{
				"name": "FISHDA Team",
			},
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"components": map[string]interface{}{
			"schemas": schemas(),
		},
		"paths": map[string]interface{}{
			"/api/feed/readings": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Ingest a reading batch",
					"description": "Accepts an object keyed by record key or an array of raw readings. Malformed records are skipped.",
					"requestBody": jsonBody(map[string]interface{}{"type": "object"}),
					"responses": map[string]interface{}{
						"200": jsonResponse("Ingest summary", map[string]interface{}{"type": "object"}),
						"400": errorResponse,
						"502": errorResponse,
					},
				},
			},
			"/api/feed/latest": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Check the latest reading",
					"description": "Runs threshold checks on a single reading without storing it",
					"requestBody": jsonBody(ref("Reading")),
					"responses": map[string]interface{}{
						"200": jsonResponse("Ingest summary", map[string]interface{}{"type": "object"}),
						"400": errorResponse,
					},
				},
			},
			"/api/device/status": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":   "Get device status",
					"responses": map[string]interface{}{"200": jsonResponse("Device status", ref("DeviceStatus"))},
				},
				"post": map[string]interface{}{
					"summary":     "Report device status",
					"requestBody": jsonBody(ref("DeviceStatus")),
					"responses": map[string]interface{}{
						"200": jsonResponse("Updated status", ref("DeviceStatus")),
						"502": errorResponse,
					},
				},
			},
			"/api/alerts/active": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "List active alerts",
					"parameters": []map[string]interface{}{
						queryParam("severity", "warning or critical", stringSchema),
						queryParam("parameter", "Sensor parameter", stringSchema),
					},
					"responses": map[string]interface{}{
						"200": jsonResponse("Active alerts, newest first", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"data":  map[string]interface{}{"type": "array", "items": ref("Alert")},
								"total": integerSchema,
							},
						}),
						"400": errorResponse,
					},
				},
			},
			"/api/alerts/history": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "List acknowledged alerts",
					"parameters": append(historyParams()[:2:2],
						queryParam("severity", "warning or critical", stringSchema),
						queryParam("parameter", "Sensor parameter", stringSchema),
						queryParam("page", "Page number (default: 1)", map[string]interface{}{"type": "integer", "default": 1}),
					),
					"responses": map[string]interface{}{
						"200": jsonResponse("Alert history page", map[string]interface{}{"type": "object"}),
						"400": errorResponse,
					},
				},
			},
			"/api/alerts/history/export": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Export alert history as CSV",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "CSV attachment",
							"content":     map[string]interface{}{"text/csv": map[string]interface{}{"schema": stringSchema}},
						},
						"400": errorResponse,
					},
				},
			},
			"/api/alerts/acknowledge-all": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Acknowledge every active alert",
					"description": "Each alert is acknowledged independently; failures are reported without rollback",
					"responses": map[string]interface{}{
						"200": jsonResponse("Bulk result", map[string]interface{}{"type": "object"}),
						"502": errorResponse,
					},
				},
			},
			"/api/alerts/{id}/acknowledge": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":    "Acknowledge an alert",
					"parameters": []map[string]interface{}{pathParam("id", "Active alert id")},
					"responses": map[string]interface{}{
						"200": jsonResponse("History record", ref("Alert")),
						"404": errorResponse,
						"502": errorResponse,
					},
				},
			},
			"/api/alerts/{id}": map[string]interface{}{
				"delete": map[string]interface{}{
					"summary":    "Dismiss an alert without acknowledging it",
					"parameters": []map[string]interface{}{pathParam("id", "Active alert id")},
					"responses": map[string]interface{}{
						"204": map[string]interface{}{"description": "Dismissed"},
						"404": errorResponse,
					},
				},
			},
			"/api/history": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Query reading history",
					"description": "Filters readings by date range and optional daily window, 10 records per page",
					"parameters": append(historyParams(),
						queryParam("page", "Page number (default: 1)", map[string]interface{}{"type": "integer", "default": 1}),
					),
					"responses": map[string]interface{}{
						"200": jsonResponse("History page", ref("HistoryPage")),
						"400": errorResponse,
					},
				},
			},
			"/api/history/page/{page}": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Move the current history view to a page",
					"description": "Out-of-range pages leave the view unchanged and report moved=false",
					"parameters":  []map[string]interface{}{pathParam("page", "Target page number")},
					"responses": map[string]interface{}{
						"200": jsonResponse("History page", ref("HistoryPage")),
						"400": errorResponse,
					},
				},
			},
			"/api/history/calendar": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":   "Selectable date bounds",
					"responses": map[string]interface{}{"200": jsonResponse("Calendar bounds", map[string]interface{}{"type": "object"})},
				},
			},
			"/api/history/export": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Export reading history",
					"description": "Exports the current view, or a fresh query when date parameters are given",
					"parameters": append(historyParams(),
						queryParam("format", "csv, xlsx or pdf (default csv)", map[string]interface{}{
							"type": "string", "enum": []string{"csv", "xlsx", "pdf"},
						}),
					),
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "File attachment"},
						"400": errorResponse,
					},
				},
			},
			"/api/config": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":   "Get device configuration",
					"responses": map[string]interface{}{"200": jsonResponse("Device configuration", map[string]interface{}{"type": "object"})},
				},
			},
			"/api/config/thresholds": map[string]interface{}{
				"put": map[string]interface{}{
					"summary": "Save threshold bands",
					"requestBody": jsonBody(map[string]interface{}{
						"type": "object", "additionalProperties": ref("ThresholdBand"),
					}),
					"responses": map[string]interface{}{
						"200": jsonResponse("Saved thresholds", map[string]interface{}{"type": "object"}),
						"400": errorResponse,
					},
				},
			},
			"/api/config/thresholds/reset": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":   "Restore default thresholds",
					"responses": map[string]interface{}{"200": jsonResponse("Default thresholds", map[string]interface{}{"type": "object"})},
				},
			},
			"/api/config/aerator": map[string]interface{}{
				"put": map[string]interface{}{
					"summary":     "Save aerator settings",
					"requestBody": jsonBody(map[string]interface{}{"type": "object"}),
					"responses":   map[string]interface{}{"200": jsonResponse("Saved aerator settings", map[string]interface{}{"type": "object"}), "400": errorResponse},
				},
			},
			"/api/config/sampling": map[string]interface{}{
				"put": map[string]interface{}{
					"summary":     "Save sampling interval",
					"requestBody": jsonBody(map[string]interface{}{"type": "object"}),
					"responses":   map[string]interface{}{"200": jsonResponse("Saved sampling settings and preview", map[string]interface{}{"type": "object"}), "400": errorResponse},
				},
			},
			"/api/config/notifications": map[string]interface{}{
				"put": map[string]interface{}{
					"summary":     "Save notification preferences",
					"requestBody": jsonBody(map[string]interface{}{"type": "object"}),
					"responses":   map[string]interface{}{"200": jsonResponse("Saved preferences", map[string]interface{}{"type": "object"})},
				},
			},
			"/api/config/wifi": map[string]interface{}{
				"put": map[string]interface{}{
					"summary":     "Save WiFi credentials",
					"description": "Waits for the node to report a connection to the new network",
					"requestBody": jsonBody(map[string]interface{}{"type": "object"}),
					"responses": map[string]interface{}{
						"200": jsonResponse("Connection confirmed", map[string]interface{}{"type": "object"}),
						"400": errorResponse,
						"504": errorResponse,
					},
				},
			},
			"/ws": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Live event stream",
					"description": "WebSocket stream of alert, readings, wifi_status and config events",
					"responses":   map[string]interface{}{"101": map[string]interface{}{"description": "Switching protocols"}},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check if the API and its database are reachable",
					"responses": map[string]interface{}{
						"200": jsonResponse("API is healthy", map[string]interface{}{
							"type":       "object",
							"properties": map[string]interface{}{"status": stringSchema},
						}),
						"503": map[string]interface{}{"description": "Database unreachable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
