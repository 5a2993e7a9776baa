package discovery

import (
	"errors"
	"testing"
)

func TestParseProbeResponse(t *testing.T) {
	tests := []struct {
		name         string
		data         string
		wantErr      bool
		wantLocation string
		wantIP       string
	}{
		{
			name: "M-SEARCH reply",
			data: "HTTP/1.1 200 OK\r\n" +
				"CACHE-CONTROL: max-age=1800\r\n" +
				"LOCATION: http://192.168.1.50:80/desc.xml\r\n" +
				"ST: upnp:rootdevice\r\n" +
				"USN: uuid:1234::upnp:rootdevice\r\n\r\n",
			wantLocation: "http://192.168.1.50:80/desc.xml",
			wantIP:       "192.168.1.50",
		},
		{
			name: "NOTIFY announcement",
			data: "NOTIFY * HTTP/1.1\r\n" +
				"HOST: 239.255.255.250:1900\r\n" +
				"NT: upnp:rootdevice\r\n" +
				"NTS: ssdp:alive\r\n" +
				"Location: http://10.0.0.7:49152/description.xml\r\n\r\n",
			wantLocation: "http://10.0.0.7:49152/description.xml",
			wantIP:       "10.0.0.7",
		},
		{
			name:         "lowercase header and bare newlines",
			data:         "HTTP/1.1 200 OK\nlocation:http://172.16.0.9/d.xml\n\n",
			wantLocation: "http://172.16.0.9/d.xml",
			wantIP:       "172.16.0.9",
		},
		{
			name:         "hostname URL with address in the path",
			data:         "HTTP/1.1 200 OK\r\nLOCATION: http://tv.local/dev/192.168.1.77/desc.xml\r\n\r\n",
			wantLocation: "http://tv.local/dev/192.168.1.77/desc.xml",
			wantIP:       "192.168.1.77",
		},
		{
			name:    "missing LOCATION",
			data:    "HTTP/1.1 200 OK\r\nST: upnp:rootdevice\r\n\r\n",
			wantErr: true,
		},
		{
			name:    "empty LOCATION",
			data:    "HTTP/1.1 200 OK\r\nLOCATION: \r\n\r\n",
			wantErr: true,
		},
		{
			name:    "hostname only",
			data:    "HTTP/1.1 200 OK\r\nLOCATION: http://tv.local:80/desc.xml\r\n\r\n",
			wantErr: true,
		},
		{
			name:    "octet out of range",
			data:    "HTTP/1.1 200 OK\r\nLOCATION: http://192.168.1.256:80/desc.xml\r\n\r\n",
			wantErr: true,
		},
		{
			name:    "too few octets",
			data:    "HTTP/1.1 200 OK\r\nLOCATION: http://192.168.1/desc.xml\r\n\r\n",
			wantErr: true,
		},
		{
			name:    "our own probe echoed back",
			data:    "M-SEARCH * HTTP/1.1\r\nHOST: 239.255.255.250:1900\r\nMAN: \"ssdp:discover\"\r\nMX: 1\r\nST: upnp:rootdevice\r\n\r\n",
			wantErr: true,
		},
		{
			name:    "binary garbage",
			data:    "\x00\x01\x02\xff",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseProbeResponse([]byte(tt.data))

			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseProbeResponse() = %+v, want error", resp)
				}
				if !errors.Is(err, ErrMalformedResponse) {
					t.Errorf("error = %v, want ErrMalformedResponse", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseProbeResponse() error = %v", err)
			}
			if resp.Location != tt.wantLocation {
				t.Errorf("Location = %q, want %q", resp.Location, tt.wantLocation)
			}
			if resp.IPv4 != tt.wantIP {
				t.Errorf("IPv4 = %q, want %q", resp.IPv4, tt.wantIP)
			}
		})
	}
}

func TestParseHeaders_FirstWins(t *testing.T) {
	hdr := parseHeaders("HTTP/1.1 200 OK\r\nLOCATION: http://1.1.1.1/a\r\nLOCATION: http://2.2.2.2/b\r\n")
	if hdr["LOCATION"] != "http://1.1.1.1/a" {
		t.Errorf("LOCATION = %q, want the first value", hdr["LOCATION"])
	}
}

func TestExtractIPv4(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://192.168.1.50:80/desc.xml", "192.168.1.50"},
		{"http://192.168.1.50/desc.xml", "192.168.1.50"},
		{"192.168.1.50:80", "192.168.1.50"},
		{"http://1192.168.1.50/x", ""},
		{"http://999.1.1.1/ and 10.1.2.3", "10.1.2.3"},
		{"http://[fe80::1]/desc.xml", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := extractIPv4(tt.in); got != tt.want {
				t.Errorf("extractIPv4(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
