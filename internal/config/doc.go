// Package config собирает конфигурацию Relay из переменных окружения.
//
// Workflow берётся из WORKFLOW_FILE (YAML/JSON) или из встроенного
// варианта WORKFLOW_VARIANT; UPSTREAM_URL, WORKFLOW_TIMEOUT и STORE_TABLE
// переопределяют соответствующие поля Definition.
package config
