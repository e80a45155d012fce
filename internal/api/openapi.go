package api

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the issuegate routes.
// webhookPath is omitted when empty; secured marks the bearer-protected routes.
func buildOpenAPIDoc(webhookPath string, secured bool) map[string]any {
	var security []any
	if secured {
		security = []any{map[string]any{"BearerAuth": []string{}}}
	}

	op := func(id, summary string, responses map[string]any, extra map[string]any) map[string]any {
		o := map[string]any{
			"operationId": id,
			"summary":     summary,
			"responses":   responses,
		}
		if security != nil {
			o["security"] = security
		}
		for k, v := range extra {
			o[k] = v
		}
		return o
	}

	ref := func(name string) map[string]any {
		return map[string]any{"$ref": "#/components/schemas/" + name}
	}
	jsonBody := func(schema any) map[string]any {
		return map[string]any{
			"required": true,
			"content":  map[string]any{"application/json": map[string]any{"schema": schema}},
		}
	}
	jsonResp := func(desc string, schema any) map[string]any {
		return map[string]any{
			"description": desc,
			"content":     map[string]any{"application/json": map[string]any{"schema": schema}},
		}
	}
	errResp := func(desc string) map[string]any { return jsonResp(desc, ref("Error")) }

	numberParam := map[string]any{
		"name": "number", "in": "path", "required": true,
		"schema": map[string]any{"type": "integer", "minimum": 1},
	}
	queryParam := func(name string, schema map[string]any) map[string]any {
		return map[string]any{"name": name, "in": "query", "required": false, "schema": schema}
	}

	upstream := map[string]any{
		"400": errResp("Invalid request"),
		"401": errResp("Missing or invalid API key"),
		"502": errResp("Upstream unreachable"),
	}
	with := func(base map[string]any, kv ...any) map[string]any {
		out := map[string]any{}
		for k, v := range base {
			out[k] = v
		}
		for i := 0; i+1 < len(kv); i += 2 {
			out[kv[i].(string)] = kv[i+1]
		}
		return out
	}

	paths := map[string]any{
		"/issues": map[string]any{
			"post": op("createIssue", "Create an issue",
				with(upstream, "201", jsonResp("Issue created", ref("Issue"))),
				map[string]any{"requestBody": jsonBody(ref("CreateIssue"))}),
			"get": op("listIssues", "List issues",
				with(upstream, "200", jsonResp("Issues", map[string]any{"type": "array", "items": ref("Issue")})),
				map[string]any{"parameters": []any{
					queryParam("state", map[string]any{"type": "string", "enum": []string{"open", "closed", "all"}, "default": "open"}),
					queryParam("labels", map[string]any{"type": "string", "description": "Comma-separated label names"}),
					queryParam("page", map[string]any{"type": "integer", "minimum": 1}),
					queryParam("per_page", map[string]any{"type": "integer", "minimum": 1, "maximum": maxPerPage}),
				}}),
		},
		"/issues/{number}": map[string]any{
			"parameters": []any{numberParam},
			"get": op("getIssue", "Get an issue",
				with(upstream, "200", jsonResp("Issue", ref("Issue")), "404", errResp("Not found upstream")),
				nil),
			"patch": op("updateIssue", "Update an issue",
				with(upstream, "200", jsonResp("Issue updated", ref("Issue"))),
				map[string]any{"requestBody": jsonBody(ref("UpdateIssue"))}),
		},
		"/issues/{number}/comments": map[string]any{
			"parameters": []any{numberParam},
			"post": op("createComment", "Comment on an issue",
				with(upstream, "201", jsonResp("Comment created", ref("Comment"))),
				map[string]any{"requestBody": jsonBody(ref("CreateComment"))}),
		},
		"/events": map[string]any{
			"get": op("listEvents", "Recently recorded webhook events, oldest first",
				map[string]any{
					"200": jsonResp("Events", map[string]any{"type": "array", "items": ref("EventRecord")}),
					"400": errResp("Invalid limit"),
				},
				map[string]any{"parameters": []any{
					queryParam("limit", map[string]any{"type": "integer", "minimum": 1, "maximum": maxEventsLimit, "default": defaultEventsLimit}),
				}}),
		},
		"/events/stream": map[string]any{
			"get": op("streamEvents", "Server-sent event stream of webhook outcomes and recorded events",
				map[string]any{"200": map[string]any{
					"description": "Event stream",
					"content":     map[string]any{"text/event-stream": map[string]any{}},
				}}, nil),
		},
		"/healthz": map[string]any{
			"get": map[string]any{
				"operationId": "healthz",
				"summary":     "Liveness",
				"responses":   map[string]any{"200": jsonResp("Healthy", ref("Health"))},
			},
		},
	}

	if webhookPath != "" {
		header := func(name string, required bool) map[string]any {
			return map[string]any{"name": name, "in": "header", "required": required, "schema": map[string]any{"type": "string"}}
		}
		status := jsonResp("Delivery outcome", ref("WebhookResponse"))
		paths[webhookPath] = map[string]any{
			"post": map[string]any{
				"operationId": "receiveWebhook",
				"summary":     "GitHub webhook delivery (HMAC-SHA256 signed)",
				"parameters": []any{
					header("X-Hub-Signature-256", true),
					header("X-GitHub-Event", true),
					header("X-GitHub-Delivery", false),
				},
				"requestBody": map[string]any{
					"required": true,
					"content":  map[string]any{"application/json": map[string]any{"schema": map[string]any{"type": "object"}}},
				},
				"responses": map[string]any{
					"200": status,
					"400": status,
					"401": status,
					"413": status,
					"500": status,
					"503": status,
				},
			},
		}
	}

	str := map[string]any{"type": "string"}
	integer := map[string]any{"type": "integer"}
	ts := map[string]any{"type": "string", "format": "date-time"}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "issuegate",
			"version": "1.0",
		},
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
			"schemas": map[string]any{
				"Error": object(map[string]any{"error": str}, "error"),
				"Issue": object(map[string]any{
					"number": integer, "title": str, "body": str, "state": str,
					"labels":   map[string]any{"type": "array", "items": str},
					"user":     str,
					"comments": integer,
					"html_url": str, "created_at": ts, "updated_at": ts,
				}, "number", "title", "state"),
				"Comment": object(map[string]any{
					"id": integer, "body": str, "user": str, "html_url": str, "created_at": ts,
				}, "id", "body"),
				"CreateIssue": object(map[string]any{
					"title":  map[string]any{"type": "string", "minLength": 1},
					"body":   str,
					"labels": map[string]any{"type": "array", "items": str},
				}, "title"),
				"UpdateIssue": object(map[string]any{
					"title": str, "body": str,
					"state": map[string]any{"type": "string", "enum": []string{"open", "closed"}},
				}),
				"CreateComment": object(map[string]any{
					"body": map[string]any{"type": "string", "minLength": 1},
				}, "body"),
				"EventRecord": object(map[string]any{
					"id": str, "delivery_id": str, "event": str, "action": str,
					"issue_number": integer, "comment_id": integer,
					"repository": str, "sender": str, "payload_digest": str, "received_at": ts,
				}, "id", "delivery_id", "event"),
				"Health": object(map[string]any{
					"status": str, "uptime_seconds": integer, "repository": str,
					"dedupe_backend": str, "events_buffered": integer, "ledger_entries": integer,
				}, "status"),
				"WebhookResponse": object(map[string]any{
					"status": map[string]any{"type": "string", "enum": []string{
						"acknowledged", "completed", "skipped", "ignored", "rejected", "invalid", "failed", "error",
					}},
					"delivery_id": str,
					"error":       str,
				}, "status"),
			},
		},
	}
}

func object(props map[string]any, required ...string) map[string]any {
	o := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		o["required"] = required
	}
	return o
}
