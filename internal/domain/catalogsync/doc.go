// Package catalogsync contains the Catalog Synchronization bounded context.
// It describes how local point-of-sale inventory is mirrored onto a remote
// REST commerce catalog.
//
// Key concepts:
//   - LocalCatalogItem: inventory record supplied by the point-of-sale side
//   - RemoteProduct: catalog record on the platform, joined to the local item by SKU
//   - RemoteCategory / MediaRef: references resolved before a product is written
//   - SyncBatchResult: the single aggregated outcome of every batch operation
//
// Design Pattern: Ports & Adapters
//   - Ports (CatalogPlatform, CredentialProvider, ImageStore, SyncRunRepository) live here
//   - Adapters (WooCommerce REST, Redis, S3, gorm) live in the infrastructure layer
package catalogsync
