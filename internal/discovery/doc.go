// Package discovery finds the TV on the local network with SSDP.
//
// A Scanner multicasts M-SEARCH probes (ST: upnp:rootdevice) to
// 239.255.255.250:1900 and examines every datagram that comes back:
//  1. The LOCATION header must be present and contain an IPv4 address
//  2. The description document at LOCATION is fetched
//  3. Its friendlyName and manufacturer elements must both be present
//  4. manufacturer must be exactly "Novatek"
//
// The first datagram passing all four checks ends the scan. Datagrams failing
// any check are discarded silently (debug log only) and the scan continues.
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	scanner.Timeout = 15 * time.Second
//
//	dev, err := scanner.Discover(ctx)
//	if errors.Is(err, discovery.ErrNotFound) {
//	    fmt.Println("No device found")
//	    return
//	}
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Found %s at %s\n", dev.Name, dev.IP)
//
// # Rounds and Timing
//
// Each round sends one probe and then listens; every datagram received
// restarts the PollWindow, so a busy network keeps the round open. When the
// window passes quietly the next round starts. The whole pass is bounded by
// Timeout regardless of how many rounds remain.
//
// # Network Requirements
//
//   - Multicast must be allowed on the local interface
//   - The TV must be on the same network segment
//   - Replies to the probe arrive on an ephemeral port; the group listener on
//     UDP 1900 is optional and skipped (with a warning) if the port is taken
package discovery
