package banderole

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banderole-io/banderole/internal/logging"
)

// testDocument is a small but complete snapshot: a boolean kill switch, a
// string key gated on it with a country rule, and a numeric key with a
// 50/50 split.
const testDocument = `{
  "version": "v1",
  "keys": [
    {
      "name": "base-enabled",
      "kind": "boolean",
      "variants": [
        {"name": "on", "value": true},
        {"name": "off", "value": false}
      ],
      "default_variant": "on"
    },
    {
      "name": "checkout-v2",
      "kind": "string",
      "variants": [
        {"name": "classic", "value": "classic"},
        {"name": "beta", "value": "beta"}
      ],
      "default_variant": "classic",
      "rules": [
        {
          "id": "ca-beta",
          "predicates": [
            {"attribute": "country", "operator": "EQ", "value": "CA"}
          ],
          "variant": "beta"
        }
      ],
      "prerequisites": [
        {"key": "base-enabled", "variant": "on"}
      ]
    },
    {
      "name": "request-limit",
      "kind": "number",
      "variants": [
        {"name": "low", "value": 10},
        {"name": "high", "value": 100}
      ],
      "default_variant": "low",
      "rules": [
        {
          "id": "rollout",
          "seed": "limit-2026",
          "splits": [
            {"variant": "low", "share": 50},
            {"variant": "high", "share": 50}
          ]
        }
      ]
    }
  ],
  "segments": [
    {
      "name": "canada",
      "predicates": [
        {"attribute": "country", "operator": "EQ", "value": "CA"}
      ]
    }
  ]
}`

// cyclicDocument has two keys whose prerequisites reference each other.
const cyclicDocument = `{
  "version": "v2",
  "keys": [
    {
      "name": "a",
      "kind": "boolean",
      "variants": [{"name": "on", "value": true}],
      "default_variant": "on",
      "prerequisites": [{"key": "b", "variant": "on"}]
    },
    {
      "name": "b",
      "kind": "boolean",
      "variants": [{"name": "on", "value": true}],
      "default_variant": "on",
      "prerequisites": [{"key": "a", "variant": "on"}]
    }
  ]
}`

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()

	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	engine, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, engine.Close(context.Background()))
	})
	return engine
}

func activateTestDocument(t *testing.T, engine *Engine) {
	t.Helper()
	require.NoError(t, engine.Activate(context.Background(), []byte(testDocument)))
}
