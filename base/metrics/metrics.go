// Package metrics holds the Prometheus metric names and help texts used
// across the daemon.
package metrics

const (
	IPClientReqsSentN      = "bactime_client_requests_sent_total"
	IPClientReqsSentH      = "Number of BACnet/IP confirmed requests sent"
	IPClientPktsReceivedN  = "bactime_client_packets_received_total"
	IPClientPktsReceivedH  = "Number of BACnet/IP packets received by the client"
	IPClientRespsAcceptedN = "bactime_client_responses_accepted_total"
	IPClientRespsAcceptedH = "Number of matching responses accepted by the client"

	IPServerPktsReceivedN  = "bactime_server_packets_received_total"
	IPServerPktsReceivedH  = "Number of BACnet/IP packets received by the server"
	IPServerPktsForwardedN = "bactime_server_packets_forwarded_total"
	IPServerPktsForwardedH = "Number of forwarded BVLL packets accepted by the server"
	IPServerReqsAcceptedN  = "bactime_server_requests_accepted_total"
	IPServerReqsAcceptedH  = "Number of well-formed service requests accepted by the server"
	IPServerReqsServedN    = "bactime_server_requests_served_total"
	IPServerReqsServedH    = "Number of service requests answered by the server"

	SyncCorrsAppliedN = "bactime_sync_corrections_applied_total"
	SyncCorrsAppliedH = "Number of clock corrections applied by the follower loop"
	SyncOffsetN       = "bactime_sync_offset_seconds"
	SyncOffsetH       = "Last clock offset measured against the reference devices"

	TimeSyncsSentN = "bactime_timesync_notifications_sent_total"
	TimeSyncsSentH = "Number of TimeSynchronization requests sent to recipients"
)
