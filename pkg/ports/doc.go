/*
Package ports defines the driven ports (interfaces) of the Wayfinder engine.

These interfaces decouple the orchestration logic from the host application, so the
engine can drive any UI technology and persist into any key-value backend.

# Key Interfaces

  - KeyValueStore: persists serialized run and tracker state (memory, file, redis, sqlite).
  - ElementQuerier: resolves a lookup strategy and value to a host element.
  - InteractionWaiter: blocks until the user interacts with an element.
  - Effects: applies and clears cosmetic treatments on elements.
  - VisualAdapter: renders step descriptors and reports navigation intents.
  - DistributedLocker: serializes state writes across processes sharing a store.
*/
package ports
