package scheduler

// FeedbackRequestText is sent to every student once their class has ended.
const FeedbackRequestText = "Привет! Как прошло сегодняшнее занятие?\n\n" +
	"Пожалуйста, поделитесь своими впечатлениями, замечаниями или предложениями. " +
	"Ваша обратная связь очень важна для нас!"
