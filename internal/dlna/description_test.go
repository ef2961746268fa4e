package dlna

import "testing"

const sampleDescription = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
<specVersion><major>1</major><minor>0</minor></specVersion>
<URLBase>http://192.168.1.50:8200/</URLBase>
<device>
<deviceType>urn:schemas-upnp-org:device:MediaRenderer:1</deviceType>
<friendlyName>Living Room TV</friendlyName>
<serviceList>
<service>
<serviceType>urn:schemas-upnp-org:service:RenderingControl:1</serviceType>
<controlURL>/upnp/control/RenderingControl1</controlURL>
</service>
<service>
<serviceType>urn:schemas-upnp-org:service:AVTransport:1</serviceType>
<serviceId>urn:upnp-org:serviceId:AVTransport</serviceId>
<controlURL>/upnp/control/AVTransport1</controlURL>
<eventSubURL>/upnp/event/AVTransport1</eventSubURL>
</service>
</serviceList>
</device>
</root>`

func TestControlURLFromDescriptionUsesURLBase(t *testing.T) {
	got, err := controlURLFromDescription(sampleDescription, "http://192.168.1.50:8200/description.xml")
	if err != nil {
		t.Fatalf("controlURLFromDescription: %v", err)
	}
	want := "http://192.168.1.50:8200/upnp/control/AVTransport1"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestControlURLFromDescriptionWithoutURLBase(t *testing.T) {
	withoutBase := `<root><device><serviceList><service>` +
		`<serviceType>urn:schemas-upnp-org:service:AVTransport:1</serviceType>` +
		`<controlURL>AVTransport/control</controlURL>` +
		`</service></serviceList></device></root>`

	got, err := controlURLFromDescription(withoutBase, "http://10.0.0.5:49152/desc.xml")
	if err != nil {
		t.Fatalf("controlURLFromDescription: %v", err)
	}
	want := "http://10.0.0.5:49152/AVTransport/control"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestControlURLFromDescriptionAbsoluteControlURL(t *testing.T) {
	abs := `<root><device><serviceList><service>` +
		`<serviceType>urn:schemas-upnp-org:service:AVTransport:1</serviceType>` +
		`<controlURL>https://renderer.example/control</controlURL>` +
		`</service></serviceList></device></root>`

	got, err := controlURLFromDescription(abs, "http://10.0.0.5:49152/desc.xml")
	if err != nil {
		t.Fatalf("controlURLFromDescription: %v", err)
	}
	if got != "https://renderer.example/control" {
		t.Errorf("got %q", got)
	}
}

func TestControlURLFromDescriptionMissingService(t *testing.T) {
	noAVTransport := `<root><device><serviceList><service>` +
		`<serviceType>urn:schemas-upnp-org:service:RenderingControl:1</serviceType>` +
		`<controlURL>/rc</controlURL>` +
		`</service></serviceList></device></root>`

	if _, err := controlURLFromDescription(noAVTransport, "http://10.0.0.5:1234/desc.xml"); err == nil {
		t.Error("expected an error when no AVTransport service block is present")
	}
}
