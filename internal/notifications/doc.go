// Package notifications pushes pipeline outcomes to ntfy.
//
// NewService returns an ntfy-backed Service when notifications.ntfy_topic is
// set and a no-op otherwise. The drafted and failures toggles silence either
// message without disabling the other. Delivery errors are returned to the
// caller, which logs them; a failed notification never affects an item.
package notifications
