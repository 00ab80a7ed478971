// Command weiche runs the weiche LLM gateway.
//
// weiche accepts OpenAI Responses-style requests, resolves the requested
// model against a route table and forwards the call to the first backend
// of the route that succeeds, rotating through each backend's API keys.
//
// Usage:
//
//	# Start the gateway (config.yaml, WEICHE_CONFIG or environment)
//	weiche serve
//
//	# Start with an explicit configuration file
//	weiche serve --config /etc/weiche/config.yaml
//
//	# Show the configured routes and whether their credentials resolve
//	weiche routes
//
//	# Print the model list served on GET /v1/models
//	weiche models
//
// The route table is read from ROUTES_CONFIG (JSON) or from the file named
// by WEICHE_ROUTES_FILE, which is re-read when it changes.
package main

func main() {
	Execute()
}
