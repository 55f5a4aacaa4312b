package config

// GetDefaults returns the built-in configuration keyed by koanf path.
func GetDefaults() map[string]interface{} {
	return map[string]interface{}{
		"env":        EnvLocal,
		"log.level":  "info",
		"log.format": "text",

		"locale.locale":   "en-gb",
		"locale.country":  "United Kingdom",
		"locale.currency": "£",

		"vendor.inventory_url":   "https://api.store.nvidia.com/partner/v1/feinventory",
		"vendor.catalog_url":     "https://api.nvidia.partners/edge/product/search",
		"vendor.store_url":       "https://marketplace.nvidia.com/{locale}/consumer/graphics-cards/",
		"vendor.manufacturer":    "NVIDIA",
		"vendor.page_limit":      100,
		"vendor.max_pages":       10,
		"vendor.timeout":         "30s",
		"vendor.request_spacing": "1s",

		"poll.check_interval":       "10s",
		"poll.cooldown":             "120s",
		"poll.sku_refresh_interval": "1h",
		"poll.fallback_sleep":       "10s",

		"status_updates.enabled":  true,
		"status_updates.schedule": "@every 1h",

		"notifications.dispatch_timeout": "15s",
		"notifications.drain_timeout":    "10s",

		"notifications.console.enabled": true,
		"notifications.console.color":   true,

		"notifications.discord.username": "Stock Checker",

		"notifications.telegram.api_url":      "https://api.telegram.org",
		"notifications.telegram.poll_updates": true,

		"notifications.ntfy.server_url": "https://ntfy.sh",
		"notifications.ntfy.priority":   "default",

		"notifications.home_assistant.url":      "http://homeassistant.local:8123",
		"notifications.home_assistant.service":  "mobile_app_phone",
		"notifications.home_assistant.critical": true,

		"notifications.sound.enabled": true,

		"notifications.browser.enabled": true,

		"notifications.email.port": 587,

		"notifications.redis.channel": "skuwatch:events",

		"notifications.rabbitmq.exchange":    "skuwatch",
		"notifications.rabbitmq.routing_key": "stock.events",
		"notifications.rabbitmq.queue_size":  64,

		"notifications.journal.table": "stock_events",

		"metrics.exporter":     ExporterNone,
		"metrics.service_name": "skuwatch",
	}
}
