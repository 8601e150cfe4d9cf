package domain

var sampleImages = []ImageTask{
	{SourceURL: "https://images.unsplash.com/photo-1506744038136-46273834b3fb?w=1200", Filename: "sample_1.jpg", Origin: OriginSample},
	{SourceURL: "https://images.unsplash.com/photo-1469474968028-56623f02e42e?w=1200", Filename: "sample_2.jpg", Origin: OriginSample},
	{SourceURL: "https://images.unsplash.com/photo-1501785888041-af3ef285b470?w=1200", Filename: "sample_3.jpg", Origin: OriginSample},
}

// SampleTasks returns a fresh copy of the fixed sample batch.
func SampleTasks() []ImageTask {
	out := make([]ImageTask, len(sampleImages))
	copy(out, sampleImages)
	return out
}
