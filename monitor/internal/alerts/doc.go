// Package alerts turns changes in the latest reading's severity into alert
// events and delivers them to Slack, Teams or generic HTTP webhooks.
package alerts
