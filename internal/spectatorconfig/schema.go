package spectatorconfig

// schema is the JSON Schema for the client configuration document,
// embedded as a Go string constant rather than loaded from a file —
// the library has no other reason to depend on embed/file IO.
const schema = `{
    "type": "object",
    "description": "Configuration for the spectator metrics client.",
    "properties": {
        "step": {
            "description": "Primary accumulator step, as a Go duration string (e.g. \"5s\").",
            "type": "string"
        },
        "lwc.step": {
            "description": "Publish/consolidation step, as a Go duration string (e.g. \"60s\").",
            "type": "string"
        },
        "meterTTL": {
            "description": "How long an unused meter is kept before expiring.",
            "type": "string"
        },
        "enabled": {
            "description": "Master switch for publishing.",
            "type": "boolean"
        },
        "lwcEnabled": {
            "description": "Master switch for the subscription/evaluator pipeline.",
            "type": "boolean"
        },
        "uri": {
            "description": "Publish endpoint.",
            "type": "string"
        },
        "evalUri": {
            "description": "Streaming evaluation endpoint.",
            "type": "string"
        },
        "configUri": {
            "description": "Subscription list endpoint.",
            "type": "string"
        },
        "batchSize": {
            "description": "Maximum measurements per publish/eval HTTP request.",
            "type": "integer",
            "minimum": 1
        },
        "gaugePollingFrequency": {
            "description": "How often PolledMeterScheduler samples registered gauges.",
            "type": "string"
        },
        "validTagCharacters": {
            "description": "Character class allowed in tag keys and default tag values.",
            "type": "string"
        },
        "validTagValueCharacters": {
            "description": "Per-tag-key override of validTagCharacters.",
            "type": "object",
            "additionalProperties": {
                "type": "string"
            }
        },
        "commonTags": {
            "description": "Tags applied to every measurement this process publishes.",
            "type": "object",
            "additionalProperties": {
                "type": "string"
            }
        }
    },
    "additionalProperties": true
}`
