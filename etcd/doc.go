// Package etcd encapsula el acceso a configuración centralizada en etcd.
//
// Las claves viven bajo un namespace "/<app>/<env>/" para aislar
// aplicaciones y entornos. El Client ofrece getters tipados con
// defaults, y Cache mantiene una copia local sincronizada con watch
// para lecturas calientes (límites de riesgo, feature flags).
package etcd
