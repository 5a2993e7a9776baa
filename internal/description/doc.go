// Package description fetches and parses UPnP device description documents.
//
// An SSDP response advertises a LOCATION URL. Discovery fetches that URL with
// Client.Fetch and reads the friendlyName and manufacturer elements with
// Parse to decide whether the responder is the TV.
//
//	client := description.NewClient()
//	desc, err := client.Describe(ctx, "http://192.168.1.50:80/desc.xml")
//	if err != nil {
//	    // transport failure, non-2xx status or missing field
//	}
//	fmt.Println(desc.FriendlyName, desc.Manufacturer)
package description
