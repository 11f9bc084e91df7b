// Package discovery implements UDP multicast service discovery for socket servers.
//
// A MulticastResponder joins an IPv4 multicast group (default 224.0.1.1:9000) and
// is attached to a listener with base.Listener.SetupDiscovery. The listener answers
// the exact text "discover" with "<name> [<host>:<port>]", sent unicast to the
// requester. Probe is the client side: it sends the request to the group and
// collects the replies for a given time.
package discovery
